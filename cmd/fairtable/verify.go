package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/phh"
	"github.com/lox/fairtable/internal/shuffle"
)

// VerifyCmd audits every hand in a PHH session file: the revealed deck must
// open the commitment, and replaying the actions must reproduce the awards.
type VerifyCmd struct {
	File    string `arg:"" name:"file" help:"Path to a session.phhs file"`
	Verbose bool   `short:"V" help:"Log each hand as it is checked"`
}

// handVerdict is the outcome of checking one hand.
type handVerdict struct {
	Section int
	HandID  string
	Voided  bool
	Err     error
}

func (cmd VerifyCmd) Run() error {
	level := log.WarnLevel
	if cmd.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, Prefix: "verify"})

	f, err := os.Open(filepath.Clean(cmd.File))
	if err != nil {
		return err
	}
	defer f.Close()

	verdicts, err := verifySession(context.Background(), f, logger)
	if err != nil {
		return err
	}
	if len(verdicts) == 0 {
		return fmt.Errorf("no hands found in %s", cmd.File)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %d hands", cmd.File, len(verdicts))))
	var failed int
	for _, v := range verdicts {
		switch {
		case v.Err != nil:
			failed++
			fmt.Printf("  %s %s %s\n", failStyle.Render("FAIL"), v.HandID, v.Err)
		case v.Voided:
			fmt.Printf("  %s %s %s\n", skipStyle.Render("VOID"), v.HandID, dimStyle.Render("voided hands are not replayed"))
		default:
			fmt.Printf("  %s %s\n", okStyle.Render(" OK "), v.HandID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hands failed verification", failed, len(verdicts))
	}
	return nil
}

// verifySession decodes a session and checks each hand independently, so
// one bad hand does not hide the others.
func verifySession(ctx context.Context, r io.Reader, logger *log.Logger) ([]handVerdict, error) {
	hands, err := phh.DecodeSession(r)
	if err != nil {
		return nil, err
	}
	verdicts := make([]handVerdict, 0, len(hands))
	for i, hh := range hands {
		v := handVerdict{Section: i + 1, HandID: hh.HandID}
		v.Voided, v.Err = verifyHand(ctx, hh)
		logger.Debug("checked hand", "section", v.Section, "hand", v.HandID, "voided", v.Voided, "err", v.Err)
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

func verifyHand(ctx context.Context, hh *phh.HandHistory) (voided bool, err error) {
	h, err := phh.ToHistory(hh)
	if err != nil {
		return false, err
	}
	if h.Voided {
		return true, nil
	}
	if len(h.Commitment.Signature) > 0 {
		if err := shuffle.VerifySignature(h.Commitment); err != nil {
			return false, fmt.Errorf("signature: %w", err)
		}
	}
	if err := h.Audit(); err != nil {
		return false, fmt.Errorf("deck: %w", err)
	}
	if err := hand.VerifyReplay(ctx, *h); err != nil {
		if errors.Is(err, hand.ErrNotReplayable) {
			return false, err
		}
		return false, fmt.Errorf("replay: %w", err)
	}
	return false, nil
}
