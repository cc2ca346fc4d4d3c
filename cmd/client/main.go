package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wirebus/wirebus/internal/models"
)

// Interactive wirebus client for manual testing:
//
//	sub <topic> [last_n]     subscribe
//	unsub <topic>            unsubscribe
//	pub <topic> <payload>    publish a message with a fresh UUID
//	ping                     round trip
//	quit                     exit
func main() {
	serverURL := flag.String("url", "ws://localhost:8080", "server URL")
	clientID := flag.String("client", "", "client_id (auto-generated if empty)")
	flag.Parse()

	id := *clientID
	if id == "" {
		id = fmt.Sprintf("cli-%s", uuid.NewString()[:8])
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL+"/ws", nil)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	fmt.Printf("connected as %s\n", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame models.ServerFrame
			if err := conn.ReadJSON(&frame); err != nil {
				fmt.Printf("\nconnection closed: %v\n", err)
				return
			}
			printFrame(frame)
		}
	}()

	seq := 0
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		seq++
		reqID := fmt.Sprintf("req-%d", seq)
		var frame models.ClientFrame

		switch fields[0] {
		case "sub":
			if len(fields) < 2 {
				fmt.Println("usage: sub <topic> [last_n]")
				continue
			}
			lastN := 0
			if len(fields) > 2 {
				lastN, _ = strconv.Atoi(fields[2])
			}
			frame = models.ClientFrame{
				Type: models.FrameSubscribe, Topic: fields[1],
				ClientID: id, LastN: lastN, RequestID: reqID,
			}
		case "unsub":
			if len(fields) < 2 {
				fmt.Println("usage: unsub <topic>")
				continue
			}
			frame = models.ClientFrame{
				Type: models.FrameUnsubscribe, Topic: fields[1],
				ClientID: id, RequestID: reqID,
			}
		case "pub":
			if len(fields) < 3 {
				fmt.Println("usage: pub <topic> <payload>")
				continue
			}
			frame = models.ClientFrame{
				Type: models.FramePublish, Topic: fields[1], RequestID: reqID,
				Message: &models.Message{
					ID:      uuid.NewString(),
					Payload: strings.Join(fields[2:], " "),
				},
			}
		case "ping":
			frame = models.ClientFrame{Type: models.FramePing, RequestID: reqID}
		case "quit", "exit":
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
			return
		default:
			fmt.Println("commands: sub, unsub, pub, ping, quit")
			continue
		}

		if err := conn.WriteJSON(frame); err != nil {
			log.Fatalf("write: %v", err)
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func printFrame(f models.ServerFrame) {
	switch f.Type {
	case models.FrameEvent:
		fmt.Printf("\n[event] %s id=%s payload=%v\n> ", f.Topic, f.Message.ID, f.Message.Payload)
	case models.FrameAck:
		fmt.Printf("\n[ack] %s %s\n> ", f.RequestID, f.Topic)
	case models.FrameError:
		fmt.Printf("\n[error] %s: %s\n> ", f.Error.Code, f.Error.Message)
	case models.FramePong:
		fmt.Printf("\n[pong] %s\n> ", f.RequestID)
	case models.FrameInfo:
		fmt.Printf("\n[info] %s %s %s\n> ", f.Msg, f.Topic, f.ClientID)
	default:
		fmt.Printf("\n[%s] %+v\n> ", f.Type, f)
	}
}
