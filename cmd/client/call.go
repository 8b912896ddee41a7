package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Meet/internal/client/capture"
	"github.com/dkeye/Meet/internal/client/orch"
	"github.com/dkeye/Meet/internal/client/rtc"
	"github.com/dkeye/Meet/internal/client/signaling"
	"github.com/dkeye/Meet/internal/domain"
)

var (
	flagServer   string
	flagEmail    string
	flagPassword string
	flagUsername string
	flagSignUp   bool
	flagSTUN     []string
	flagTimeout  time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <room-id>",
	Short: "Join a room and stay on the call",
	Long: `Join a room and stay on the call until interrupted.

While on the call:
  a  toggle microphone
  c  toggle camera
  s  start/stop screen share
  p  list participants and inbound track stats
  q  hang up`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(domain.RoomID(args[0]))
	},
}

func runCall(room domain.RoomID) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flagSignUp {
		if err := signUp(ctx); err != nil {
			return err
		}
	}
	token, err := signIn(ctx)
	if err != nil {
		return err
	}

	wsURL, err := signalingURL(flagServer)
	if err != nil {
		return err
	}
	channel := signaling.NewClient(wsURL, token)
	if err := channel.Connect(ctx); err != nil {
		return err
	}
	defer channel.Close()

	factory := rtc.NewFactory(rtc.Config{ICEServers: flagSTUN})
	o := orch.New(channel, factory, func() (capture.Capture, error) {
		return capture.NewSynthetic()
	}, flagTimeout)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	joinErr := make(chan error, 1)
	o.Do(func() { joinErr <- o.JoinRoom(room) })
	select {
	case err := <-joinErr:
		if err != nil {
			return err
		}
	case <-done:
		return fmt.Errorf("signaling channel closed")
	}

	go readCommands(cancel, o, factory)

	<-done
	return nil
}

// readCommands turns stdin lines into orchestrator commands. Every
// command runs on the orchestrator loop.
func readCommands(cancel context.CancelFunc, o *orch.Orchestrator, factory *rtc.Factory) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "a":
			o.Do(func() {
				enabled := o.ToggleTrack(webrtc.RTPCodecTypeAudio)
				log.Info().Bool("enabled", enabled).Msg("microphone")
			})
		case "c":
			o.Do(func() {
				enabled := o.ToggleTrack(webrtc.RTPCodecTypeVideo)
				log.Info().Bool("enabled", enabled).Msg("camera")
			})
		case "s":
			o.Do(func() {
				if err := o.StartScreenShare(); err != nil {
					log.Error().Err(err).Msg("screen share")
				}
			})
		case "S":
			o.Do(func() { o.StopScreenShare() })
		case "p":
			o.Do(func() {
				for id, name := range o.Peers() {
					fmt.Printf("%s  %s\n", id, name)
				}
				for key, st := range factory.Snapshot() {
					fmt.Printf("%s  packets=%d bytes=%d\n", key, st.Packets, st.Bytes)
				}
			})
		case "q":
			o.Do(func() { o.LeaveRoom() })
			cancel()
			return
		}
	}
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

func signUp(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{
		"username": flagUsername,
		"email":    flagEmail,
		"password": flagPassword,
	})
	resp, err := postJSON(ctx, flagServer+"/auth/signup", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("signup failed: %s", resp.Status)
	}
	return nil
}

func signIn(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    flagEmail,
		"password": flagPassword,
	})
	resp, err := postJSON(ctx, flagServer+"/auth/signin", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode signin response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signin failed: %s", tr.Error)
	}
	return tr.Token, nil
}

func postJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// signalingURL maps the HTTP base URL onto the websocket endpoint.
func signalingURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/ws/signal"
	return u.String(), nil
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&flagServer, "server", "http://localhost:8080", "Server base URL")
	callCmd.Flags().StringVarP(&flagEmail, "email", "e", "", "Account email")
	callCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "Account password")
	callCmd.Flags().StringVarP(&flagUsername, "name", "n", "", "Display name (used with --signup)")
	callCmd.Flags().BoolVar(&flagSignUp, "signup", false, "Register the account before signing in")
	callCmd.Flags().StringSliceVar(&flagSTUN, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN/TURN server URLs")
	callCmd.Flags().DurationVar(&flagTimeout, "negotiation-timeout", 15*time.Second, "Outstanding offer expiry")
	_ = callCmd.MarkFlagRequired("email")
	_ = callCmd.MarkFlagRequired("password")
}
