// Command client is a headless Duet participant: it joins a room, starts
// synthetic media, negotiates the call and bridges stdin to the chat.
// Useful as a test partner and as a reference for embedding the client
// packages.
package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/client/media"
	"github.com/dkeye/Duet/internal/client/negotiation"
	"github.com/dkeye/Duet/internal/client/rtc"
	"github.com/dkeye/Duet/internal/client/signaling"
	"github.com/dkeye/Duet/internal/domain"
)

func main() {
	var (
		serverURL = flag.String("server", "ws://localhost:3000/api/ws/signal", "signaling endpoint")
		roomCode  = flag.String("room", "", "room code (generated when empty)")
		autoCall  = flag.Bool("call", true, "start local media once a partner is present")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code := *roomCode
	if code == "" {
		code = string(domain.GenerateRoomCode())
	}

	provider := media.NewSyntheticProvider(
		media.SyntheticCamera{ID: "front", Label: "Front camera"},
		media.SyntheticCamera{ID: "back", Label: "Back camera", Torch: true},
	)
	mgr := media.NewManager(provider)

	var ctrl *negotiation.Controller
	client, err := signaling.Dial(ctx, *serverURL, signaling.Handlers{
		OnRoomJoined: func(room string) {
			log.Info().Str("room", room).Msg("joined room")
		},
		OnRoomFull: func() {
			log.Warn().Msg("room is full, try another code")
			cancel()
		},
		OnWaitingForPartner: func() {
			log.Info().Msg("waiting for a partner")
		},
		OnPartnerConnected: func() {
			log.Info().Msg("partner connected")
			if *autoCall {
				if err := ctrl.StartLocalMedia(ctx); err != nil {
					log.Error().Err(err).Msg("start media")
				}
			}
		},
		OnPartnerDisconnected: func() {
			ctrl.HandlePartnerDisconnected()
		},
		OnChat: func(text string) {
			log.Info().Str("from", "partner").Msg(text)
		},
		OnOffer: func(sdp webrtc.SessionDescription) {
			if err := ctrl.HandleRemoteOffer(ctx, sdp); err != nil {
				log.Error().Err(err).Msg("remote offer")
			}
		},
		OnAnswer: func(sdp webrtc.SessionDescription) {
			if err := ctrl.HandleRemoteAnswer(sdp); err != nil {
				log.Error().Err(err).Msg("remote answer")
			}
		},
		OnCandidate: func(cand webrtc.ICECandidateInit) {
			if err := ctrl.HandleRemoteCandidate(cand); err != nil {
				log.Error().Err(err).Msg("remote candidate")
			}
		},
		OnError: func(reason string) {
			log.Warn().Str("reason", reason).Msg("server error")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	newLink := func() (negotiation.PeerLink, error) {
		conn, err := rtc.NewConnection(rtc.DefaultConfig())
		if err != nil {
			return nil, err
		}
		conn.OnClosed(func() {
			log.Info().Msg("peer connection closed")
		})
		return conn, nil
	}
	ctrl = negotiation.New(newLink, mgr, client, func(notice string) {
		log.Info().Msg(notice)
	})
	ctrl.OnRemoteTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("kind", track.Kind().String()).Msg("receiving partner media")
	})

	if err := client.JoinRoom(code); err != nil {
		log.Fatal().Err(err).Msg("join room")
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if err := client.SendChat(line); err != nil {
				log.Warn().Err(err).Msg("chat send")
				return
			}
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("signaling connection lost")
		}
	}

	ctrl.Stop()
	client.Close()
	log.Info().Msg("client exited")
}
