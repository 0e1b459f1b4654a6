package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/YiuTerran/go-gamegate/network/tcp"
	"github.com/YiuTerran/go-gamegate/protocol"
)

type probeOptions struct {
	addr     string
	username string
	password string
	room     string
	key      string
	timeout  time.Duration
}

// newProbeCmd 用二进制协议登录或重连一次，打印服务端返回的事件
func newProbeCmd() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Log in (or reconnect with --key) over TCP and print the server events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:7300", "tcp gate address")
	cmd.Flags().StringVarP(&opts.username, "user", "u", "", "username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password")
	cmd.Flags().StringVarP(&opts.room, "room", "r", "", "room reference")
	cmd.Flags().StringVar(&opts.key, "key", "", "reconnect key, overrides login")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "dial and wait timeout")
	return cmd
}

func runProbe(cmd *cobra.Command, opts probeOptions) error {
	codec := protocol.NewBinaryCodec()
	var (
		frame []byte
		err   error
	)
	if opts.key != "" {
		frame, err = codec.EncodeReconnect(protocol.ReconnectRequest{Key: opts.key})
	} else {
		frame, err = codec.EncodeLogin(protocol.LoginRequest{
			Credentials: protocol.Credentials{Username: opts.username, Password: opts.password},
			RoomRef:     opts.room,
		})
	}
	if err != nil {
		return err
	}

	conn, err := tcp.Dial(opts.addr, opts.timeout, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	if err = conn.WriteMsg(frame).Wait(ctx); err != nil {
		return err
	}

	events := make(chan protocol.Event, 4)
	go readEvents(ctx, conn, codec, events)

	out := cmd.OutOrStdout()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_, _ = fmt.Fprintln(out, "connection closed")
				return nil
			}
			printEvent(out, ev)
			if ev.Type == protocol.Start {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("no START within %v", opts.timeout)
		}
	}
}

// readEvents 返回之后ctx会被取消，不会阻塞在发送上
func readEvents(ctx context.Context, conn *tcp.Conn, codec protocol.Codec, events chan<- protocol.Event) {
	defer close(events)
	for {
		data, err := conn.ReadMsg()
		if err != nil {
			return
		}
		ev, err := codec.DecodeEvent(data)
		if err != nil {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func printEvent(out io.Writer, ev protocol.Event) {
	if data, ok := ev.Payload.([]byte); ok && ev.Type == protocol.GameRoomJoinSuccess {
		if key, err := protocol.DecodeString(data); err == nil {
			_, _ = fmt.Fprintf(out, "%s key=%s\n", ev.Type, key)
			return
		}
	}
	_, _ = fmt.Fprintln(out, ev.Type)
}
