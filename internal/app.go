package internal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"peerlink/internal/config"
	"peerlink/pkg/crypto"
	"peerlink/pkg/log"
	"peerlink/pkg/peer"
	"peerlink/pkg/signal"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	pingEvent = "ping"
	pongEvent = "pong"

	maxLineSize = 1 << 20
)

type App struct {
	cfg config.Config

	in  io.Reader
	out io.Writer

	codec *signal.Codec
	peer  *peer.Peer
}

func NewApp() *App {
	return &App{
		in:  os.Stdin,
		out: os.Stdout,
	}
}

func (a *App) Setup(args []string) (err error) {
	if err := a.parseCmdline(args); err != nil {
		return err
	}

	if err := log.SetupLogger(a.cfg.LogLevel); err != nil {
		return errors.Wrap(err, "logger")
	}

	var sealer signal.Crypto

	if len(a.cfg.Passphrase) != 0 {
		if sealer, err = crypto.NewAesCbc(crypto.AesCbcConfig{
			Passphrase: a.cfg.Passphrase,
		}); err != nil {
			return errors.Wrap(err, "payload crypto")
		}
	}

	a.codec, err = signal.NewCodec(signal.CodecConfig{
		Compact: a.cfg.Compact,
	}, sealer)
	if err != nil {
		return errors.Wrap(err, "signaling codec")
	}

	role := peer.RoleResponder
	if a.cfg.Initiator {
		role = peer.RoleInitiator
	}

	a.peer, err = peer.NewWebRTCPeer(peer.Config{
		Role: role,
	}, peer.WebRTCConfig{
		STUN: a.cfg.STUN,
	}, a.codec)
	if err != nil {
		a.codec.Close()

		return errors.Wrap(err, "peer")
	}

	return nil
}

func (a *App) Run(ctx context.Context, cancel context.CancelFunc) error {
	log.Infof("Starting peerlink, role: %s, session: %s", a.peer.Role(), a.peer.ID())
	defer log.Info("Ending peerlink")

	defer a.codec.Close()
	defer a.peer.Close()

	a.listenOS(cancel)

	a.peer.OnMessage(func(message string) {
		fmt.Fprintln(a.out, message)
	})
	a.peer.On(pingEvent, func(string) {
		a.peer.Send(pongEvent)
	})

	lines := a.readLines(ctx)

	if err := a.exchange(ctx, lines); err != nil {
		return errors.Wrap(err, "signaling")
	}

	select {
	case <-a.peer.ChannelReady():
		log.Info("data channel open, type to send")
	case <-a.peer.Done():
		return nil
	case <-ctx.Done():
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.peer.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			a.peer.Send(line)
		}
	}
}

// exchange runs the one-shot signaling: the initiator prints its offer and
// then waits for the answer line, the responder reads the offer line first
// and prints its answer.
func (a *App) exchange(ctx context.Context, lines <-chan string) error {
	if a.peer.Role() == peer.RoleInitiator {
		if err := a.printSignal(ctx); err != nil {
			return err
		}

		answer, err := a.readSignal(ctx, lines)
		if err != nil {
			return err
		}

		a.peer.SetRemoteSignal(answer)

		return nil
	}

	offer, err := a.readSignal(ctx, lines)
	if err != nil {
		return err
	}

	a.peer.SetRemoteSignal(offer)

	return a.printSignal(ctx)
}

func (a *App) printSignal(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	payload, err := a.peer.Signal(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.out, payload)

	return err
}

func (a *App) readSignal(ctx context.Context, lines <-chan string) (string, error) {
	log.Info("waiting for the remote payload on stdin...")

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-a.peer.Done():
			return "", peer.ErrClosed
		case line, ok := <-lines:
			if !ok {
				return "", io.ErrUnexpectedEOF
			}

			if len(line) == 0 {
				continue
			}

			return line, nil
		}
	}
}

func (a *App) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(a.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			log.Error(errors.Wrap(err, "stdin"))
		}
	}()

	return lines
}

func (a *App) parseCmdline(args []string) error {
	flags := pflag.NewFlagSet("peerlink", pflag.ContinueOnError)

	var (
		cfgFile    string
		initiator  bool
		stun       []string
		compact    bool
		passphrase string
		timeout    time.Duration
		logLevel   string
	)

	flags.StringVarP(&cfgFile, "config", "f", "", "YAML file with default values for the options below")

	// Session options.
	flags.BoolVarP(&initiator, "initiator", "i", false, "Create the data channel and send the offer; otherwise wait for the remote offer")
	flags.StringSliceVarP(&stun, "stun", "S", nil, "List of used STUN servers (default: built-in list)")

	// Signaling options.
	flags.BoolVarP(&compact, "compact", "c", false, "Print the payload compressed and base64url armored instead of JSON")
	flags.StringVarP(&passphrase, "passphrase", "p", "", "Seal payloads with this pre-shared passphrase (implies --compact)")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "Give up if the local payload is not ready within this duration")

	// Common options.
	flags.StringVarP(&logLevel, "log-level", "l", "", "Log level (trace, debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	if flags.Changed("initiator") {
		cfg.Initiator = initiator
	}
	if flags.Changed("stun") {
		cfg.STUN = stun
	}
	if flags.Changed("compact") {
		cfg.Compact = compact
	}
	if flags.Changed("passphrase") {
		cfg.Passphrase = passphrase
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	a.cfg = cfg

	return a.cfg.Validate()
}

func (a *App) listenOS(cancel context.CancelFunc) {
	sigchan := make(chan os.Signal, 1)
	ossignal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigchan
		cancel()
	}()
}
