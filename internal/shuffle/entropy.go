package shuffle

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/errgroup"
)

// sourceBytes is how much each source is asked for per seed.
const sourceBytes = 64

// ErrSourceUnavailable is returned by a source that cannot contribute right
// now, as opposed to one that returned bad data.
var ErrSourceUnavailable = errors.New("shuffle: entropy source unavailable")

// Source supplies raw entropy.
type Source interface {
	Name() string
	// Read fills p completely or returns an error.
	Read(ctx context.Context, p []byte) error
}

// SystemSource reads from the operating system CSPRNG.
type SystemSource struct{}

func (SystemSource) Name() string { return "system" }

func (SystemSource) Read(_ context.Context, p []byte) error {
	_, err := io.ReadFull(rand.Reader, p)
	return err
}

// JitterSource gathers scheduler and clock jitter and condenses it with
// BLAKE2b. It is a secondary source only; on its own it is not a CSPRNG.
type JitterSource struct {
	// Samples per output block. Zero means 256.
	Samples int
}

func (JitterSource) Name() string { return "jitter" }

func (j JitterSource) Read(ctx context.Context, p []byte) error {
	samples := j.Samples
	if samples <= 0 {
		samples = 256
	}
	var counter uint64
	for off := 0; off < len(p); {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, _ := blake2b.New256(nil)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], counter)
		h.Write(buf[:])
		prev := time.Now()
		for range samples {
			now := time.Now()
			binary.LittleEndian.PutUint64(buf[:], uint64(now.Sub(prev))^uint64(now.UnixNano()))
			h.Write(buf[:])
			prev = now
		}
		off += copy(p[off:], h.Sum(nil))
		counter++
	}
	return nil
}

// BeaconSource fetches public randomness from a drand-style HTTP beacon. The
// round's randomness is public, so it only adds unbiasability; it is never a
// required source.
type BeaconSource struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (BeaconSource) Name() string { return "beacon" }

func (b BeaconSource) Read(ctx context.Context, p []byte) error {
	if b.URL == "" {
		return fmt.Errorf("%w: no beacon url", ErrSourceUnavailable)
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return err
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: beacon returned %s", ErrSourceUnavailable, resp.Status)
	}
	var body struct {
		Round      uint64 `json:"round"`
		Randomness string `json:"randomness"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode beacon: %v", ErrSourceUnavailable, err)
	}
	raw, err := hex.DecodeString(body.Randomness)
	if err != nil || len(raw) == 0 {
		return fmt.Errorf("%w: beacon randomness is not hex", ErrSourceUnavailable)
	}
	// Stretch the round value to the requested length.
	r := hkdf.New(sha256.New, raw, nil, binary.BigEndian.AppendUint64([]byte("beacon"), body.Round))
	_, err = io.ReadFull(r, p)
	return err
}

// FixedSource repeats the same bytes forever. It exists for tests: a fixed
// pattern of zeros exercises the weak-entropy path, and a fixed random block
// makes decks reproducible.
type FixedSource struct {
	Label string
	Bytes []byte
}

func (f FixedSource) Name() string {
	if f.Label != "" {
		return f.Label
	}
	return "fixed"
}

func (f FixedSource) Read(_ context.Context, p []byte) error {
	if len(f.Bytes) == 0 {
		clear(p)
		return nil
	}
	for off := 0; off < len(p); {
		off += copy(p[off:], f.Bytes)
	}
	return nil
}

type registeredSource struct {
	src      Source
	required bool
}

// Collector gathers entropy from its sources and mixes it into a seed.
type Collector struct {
	sources []registeredSource
	logger  zerolog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithSource adds a source. A required source that fails aborts collection;
// an optional one is skipped when unavailable.
func WithSource(src Source, required bool) CollectorOption {
	return func(c *Collector) {
		c.sources = append(c.sources, registeredSource{src: src, required: required})
	}
}

// WithCollectorLogger sets the logger used for skipped sources.
func WithCollectorLogger(logger zerolog.Logger) CollectorOption {
	return func(c *Collector) { c.logger = logger }
}

// NewCollector builds a collector. With no sources it falls back to the
// system CSPRNG as the single required source.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.sources) == 0 {
		c.sources = []registeredSource{{src: SystemSource{}, required: true}}
	}
	return c
}

// Seed collects from every source concurrently, screens each contribution
// and mixes those that pass with HKDF, salted with the table and hand ids.
//
// A contribution that fails screening fails the whole collection with
// ErrWeakEntropy even when its source is optional: a source returning
// garbage indicates a fault rather than an outage.
func (c *Collector) Seed(ctx context.Context, tableID, handID string) ([]byte, error) {
	results := make([][]byte, len(c.sources))
	var mu sync.Mutex
	var skipped []string

	g, gctx := errgroup.WithContext(ctx)
	for i, rs := range c.sources {
		g.Go(func() error {
			buf := make([]byte, sourceBytes)
			if err := rs.src.Read(gctx, buf); err != nil {
				if rs.required {
					return fmt.Errorf("%w: required source %s: %v", ErrWeakEntropy, rs.src.Name(), err)
				}
				c.logger.Warn().Err(err).Str("source", rs.src.Name()).Msg("Skipping unavailable entropy source")
				mu.Lock()
				skipped = append(skipped, rs.src.Name())
				mu.Unlock()
				return nil
			}
			if err := screenBytes(buf); err != nil {
				clear(buf)
				return fmt.Errorf("%w: source %s: %v", ErrWeakEntropy, rs.src.Name(), err)
			}
			results[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			clear(r)
		}
		return nil, err
	}

	ikm := make([]byte, 0, len(c.sources)*(sourceBytes+16))
	contributed := 0
	for i, r := range results {
		if r == nil {
			continue
		}
		name := c.sources[i].src.Name()
		ikm = binary.BigEndian.AppendUint16(ikm, uint16(len(name)))
		ikm = append(ikm, name...)
		ikm = binary.BigEndian.AppendUint16(ikm, uint16(len(r)))
		ikm = append(ikm, r...)
		clear(r)
		contributed++
	}
	defer clear(ikm)
	if contributed == 0 {
		return nil, fmt.Errorf("%w: no source contributed", ErrWeakEntropy)
	}

	salt := make([]byte, 0, len(tableID)+len(handID)+4)
	salt = binary.BigEndian.AppendUint16(salt, uint16(len(tableID)))
	salt = append(salt, tableID...)
	salt = binary.BigEndian.AppendUint16(salt, uint16(len(handID)))
	salt = append(salt, handID...)

	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(domainSeed)), seed); err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		c.logger.Debug().Strs("skipped", skipped).Int("contributed", contributed).Msg("Seed mixed with reduced sources")
	}
	return seed, nil
}
