package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ebfe/scard"
	"github.com/spf13/cobra"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/explorer"
)

const version = "0.1.0"

var (
	optReader string
	optDriver string
	optStart  string
	optWait   bool
	verbose   int
)

func main() {
	root := &cobra.Command{
		Use:           "card-explorer",
		Short:         "Interactive utility to explore ISO 7816 smart card file systems",
		Args:          cobra.NoArgs,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVarP(&optReader, "reader", "r", "", "reader to use, by number or name fragment")
	root.Flags().StringVarP(&optDriver, "card-driver", "c", "", "adopt the quirks of the named card driver")
	root.Flags().StringVarP(&optStart, "mf", "m", "3F00", "file to select on startup, empty to start unselected")
	root.Flags().BoolVarP(&optWait, "wait", "w", false, "wait for a card to be inserted")
	root.Flags().CountVarP(&verbose, "verbose", "v", "verbose operation, use several times for more detail")
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintln(os.Stderr, err)
		_ = c.Usage()
		return err
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf("card-explorer version %s\n", version)

	level := new(slog.LevelVar)
	switch {
	case verbose <= 0:
		level.Set(slog.LevelWarn)
	case verbose == 1:
		level.Set(slog.LevelInfo)
	default:
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, err := scard.EstablishContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to establish context: %s\n", err)
		return err
	}
	defer func() {
		if err := ctx.Release(); err != nil {
			log.Printf("Warning: Failed to release context: %v", err)
		}
	}()

	reader, err := pickReader(ctx)
	if err != nil {
		return err
	}
	fmt.Printf(">> Using reader: %s\n", reader)

	if optWait {
		if err := waitForCard(ctx, reader); err != nil {
			fmt.Fprintf(os.Stderr, "Error while waiting for a card: %s\n", err)
			return err
		}
	}

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	sc, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to card: %s\n", err)
		return err
	}
	defer func() {
		if err := sc.Disconnect(scard.LeaveCard); err != nil {
			log.Printf("Warning: Failed to disconnect card: %v", err)
		}
	}()

	// Hold the card for the whole session so another ShareShared client
	// cannot move the selected file under us.
	if err := sc.BeginTransaction(); err != nil {
		fmt.Fprintf(os.Stderr, "Error locking card: %s\n", err)
		return err
	}
	defer func() {
		if err := sc.EndTransaction(scard.LeaveCard); err != nil {
			log.Printf("Warning: Failed to end transaction: %v", err)
		}
	}()

	c := card.NewCard(sc, logger)
	c.Quirks = card.QuirksForDriver(optDriver)

	s := explorer.NewSession(explorer.Config{
		Card:       c,
		Pad:        card.DetectPinPad(sc),
		Log:        logger,
		Level:      level,
		DebugLevel: verbose,
	})

	if cmd.Flags().Changed("mf") {
		if optStart != "" {
			if err := s.ChangeDirectory(optStart); err != nil {
				fmt.Printf("unable to select file %s: %s\n", optStart, err)
				return err
			}
		}
	} else if err := s.SelectMaster(); err != nil {
		fmt.Printf("unable to select MF: %s\n", err)
		return err
	}

	return s.Run(os.Stdin)
}

// pickReader interprets the -r argument as a zero-based reader number
// or a name fragment; without one the first reader wins.
func pickReader(ctx *scard.Context) (string, error) {
	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		fmt.Fprintln(os.Stderr, "No smart card reader found.")
		if err == nil {
			err = errors.New("no readers")
		}
		return "", err
	}
	if optReader == "" {
		return readers[0], nil
	}
	if n, nerr := strconv.Atoi(optReader); nerr == nil {
		if n < 0 || n >= len(readers) {
			fmt.Fprintf(os.Stderr, "Reader number %d not available.\n", n)
			return "", errors.New("reader not found")
		}
		return readers[n], nil
	}
	for _, r := range readers {
		if strings.Contains(r, optReader) {
			return r, nil
		}
	}
	fmt.Fprintf(os.Stderr, "Reader \"%s\" not found.\n", optReader)
	return "", errors.New("reader not found")
}

// waitForCard blocks until the reader reports a card present.
func waitForCard(ctx *scard.Context, reader string) error {
	rs := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	for {
		if rs[0].EventState&scard.StatePresent != 0 {
			return nil
		}
		rs[0].CurrentState = rs[0].EventState
		if err := ctx.GetStatusChange(rs, -1); err != nil {
			return err
		}
	}
}
