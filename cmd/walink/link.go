package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
	"github.com/volxolabs/walink/internal/pairing"
)

type linkOptions struct {
	retries int
}

func newLinkCmd(root *rootOptions) *cobra.Command {
	opts := &linkOptions{}
	cmd := &cobra.Command{
		Use:   "link <instance-id>",
		Short: "Pair a WhatsApp account with an instance via QR scan",
		Long: `Starts a pairing attempt for the given instance, renders each QR
artifact in the terminal and waits for the scan to be confirmed. The
command exits once the account is linked, the attempt fails, or the
artifact expires with no retries left.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(root, opts, args[0])
		},
	}
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "regenerate the session up to N times after expiry")
	return cmd
}

func runLink(root *rootOptions, opts *linkOptions, instanceID string) error {
	ctrl, err := pairing.NewController(instanceID, pairing.Options{
		Dialer:      root.dialer(),
		Requester:   root.client(),
		ArtifactTTL: root.cfg.ArtifactTTL(),
	})
	if err != nil {
		return err
	}
	defer ctrl.Dispose()

	// Observers must not block the controller turn; a buffered channel
	// hands snapshots to the render loop instead.
	snaps := make(chan model.PairingSession, 64)
	unobserve := ctrl.Observe(func(s model.PairingSession) {
		select {
		case snaps <- s:
		default:
		}
	})
	defer unobserve()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	retriesLeft := opts.retries
	var current model.PairingSession
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout, "\ninterrupted, abandoning pairing attempt")
			return nil

		case snap := <-snaps:
			changed := snap.State != current.State || snap.Artifact != current.Artifact
			current = snap
			if !changed {
				continue
			}
			switch snap.State {
			case model.StateConnecting:
				fmt.Fprintln(os.Stdout, "connecting...")
			case model.StateAwaitingArtifact:
				fmt.Fprintln(os.Stdout, "connected, waiting for QR code...")
			case model.StateArtifactActive:
				renderArtifact(snap)
			case model.StateLinked:
				fmt.Fprintf(os.Stdout, "\nlinked as %s\n", snap.LinkedIdentity)
				return nil
			case model.StateExpired:
				if retriesLeft > 0 {
					retriesLeft--
					fmt.Fprintf(os.Stdout, "\nQR code expired, requesting a new one (%d left)...\n", retriesLeft)
					if err := ctrl.Regenerate(); err != nil {
						return err
					}
					continue
				}
				return apperrors.ArtifactExpired()
			case model.StateFailed:
				if snap.Failure != nil {
					return snap.Failure
				}
				return apperrors.Internal("pairing failed")
			}

		case <-ticker.C:
			if current.State == model.StateArtifactActive {
				remaining := pairing.Remaining(current.Deadline, time.Now())
				fmt.Fprintf(os.Stdout, "\rscan within %2ds ", int(remaining.Seconds()))
			}
		}
	}
}

func renderArtifact(snap model.PairingSession) {
	fmt.Fprintf(os.Stdout, "\nscan this QR code with WhatsApp on your phone:\n\n")
	qrterminal.GenerateHalfBlock(snap.Artifact, qrterminal.L, os.Stdout)
	fmt.Fprintln(os.Stdout)
}
