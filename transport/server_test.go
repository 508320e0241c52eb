package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
	"github.com/luma/courier/relay"
	"github.com/luma/courier/storage"
	"github.com/luma/courier/transport"
)

var (
	relaySelf = netip.MustParseAddr("10.9.9.9")
	producer  = netip.MustParseAddr("10.0.0.1")
	consumer  = netip.MustParseAddr("10.0.0.2")
)

var _ = Describe("transport", func() {
	Describe("Server", func() {
		It("listens on the requested address", func() {
			server, _ := makeRelayServer()

			defer func() {
				Expect(server.Close()).To(Succeed())
			}()

			conn, err := net.Dial("tcp", server.Addr().String())
			Expect(err).To(Succeed())
			conn.Close()
		})

		Describe("SEND command", func() {
			It("stores the payload and acknowledges", func() {
				server, box := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				res := exchange(server.Addr().String(), protocol.Message{
					Command:     protocol.SEND,
					Source:      producer,
					Destination: consumer,
					Payload:     []byte("hello consumer"),
				})

				Expect(res.Command).To(Equal(protocol.ACK))
				Expect(res.Source).To(Equal(producer))
				Expect(res.Destination).To(Equal(consumer))
				Expect(res.Payload).To(BeEmpty())

				Expect(box.Len()).To(Equal(1))

				entry, ok := box.TryDequeue()
				Expect(ok).To(BeTrue())
				Expect(entry.Source).To(Equal(producer))
				Expect(entry.Payload).To(Equal([]byte("hello consumer")))
			})

			It("closes the connection once the exchange completes", func() {
				server, _ := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				conn, err := net.Dial("tcp", server.Addr().String())
				Expect(err).To(Succeed())
				defer conn.Close()

				_, err = conn.Write(protocol.Encode(protocol.Message{
					Command:     protocol.SEND,
					Source:      producer,
					Destination: consumer,
					Payload:     []byte("one shot"),
				}))
				Expect(err).To(Succeed())

				ack := make([]byte, protocol.HeaderSize)
				Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
				_, err = io.ReadFull(conn, ack)
				Expect(err).To(Succeed())

				waitForClose(conn)
			})
		})

		Describe("REQ command", func() {
			It("relays the oldest stored message", func() {
				server, _ := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				addr := server.Addr().String()

				for _, payload := range []string{"first", "second"} {
					res := exchange(addr, protocol.Message{
						Command:     protocol.SEND,
						Source:      producer,
						Destination: consumer,
						Payload:     []byte(payload),
					})
					Expect(res.Command).To(Equal(protocol.ACK))
				}

				res := exchange(addr, protocol.Message{
					Command: protocol.REQ,
					Source:  consumer,
				})

				Expect(res.Command).To(Equal(protocol.MSG))
				Expect(res.Source).To(Equal(producer))
				Expect(res.Destination).To(Equal(relaySelf))
				Expect(res.Payload).To(Equal([]byte("first")))
			})

			It("answers with an empty message when nothing is stored", func() {
				server, _ := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				res := exchange(server.Addr().String(), protocol.Message{
					Command: protocol.REQ,
					Source:  consumer,
				})

				Expect(res.Command).To(Equal(protocol.MSG))
				Expect(res.Source.IsValid()).To(BeFalse())
				Expect(res.Destination.IsValid()).To(BeFalse())
				Expect(res.Payload).To(BeEmpty())
			})
		})

		It("serves consecutive connections", func() {
			server, box := makeRelayServer()

			defer func() {
				Expect(server.Close()).To(Succeed())
			}()

			addr := server.Addr().String()

			ack := exchange(addr, protocol.Message{
				Command:     protocol.SEND,
				Source:      producer,
				Destination: consumer,
				Payload:     []byte("round trip"),
			})
			Expect(ack.Command).To(Equal(protocol.ACK))

			msg := exchange(addr, protocol.Message{
				Command: protocol.REQ,
				Source:  consumer,
			})
			Expect(msg.Command).To(Equal(protocol.MSG))
			Expect(msg.Payload).To(Equal([]byte("round trip")))

			Expect(box.Len()).To(Equal(0))
		})

		Describe("request handling", func() {
			It("drops requests shorter than the header without replying", func() {
				server, _ := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				conn, err := net.Dial("tcp", server.Addr().String())
				Expect(err).To(Succeed())
				defer conn.Close()

				_, err = conn.Write([]byte("runt"))
				Expect(err).To(Succeed())

				Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
				raw, err := io.ReadAll(conn)
				Expect(err).To(Succeed())
				Expect(raw).To(BeEmpty())
			})

			It("drops requests with commands it does not serve", func() {
				server, box := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				conn, err := net.Dial("tcp", server.Addr().String())
				Expect(err).To(Succeed())
				defer conn.Close()

				_, err = conn.Write(protocol.Encode(protocol.Message{
					Command:     protocol.ACK,
					Source:      producer,
					Destination: consumer,
				}))
				Expect(err).To(Succeed())

				Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
				raw, err := io.ReadAll(conn)
				Expect(err).To(Succeed())
				Expect(raw).To(BeEmpty())

				Expect(box.Len()).To(Equal(0))
			})

			It("survives a peer that connects and leaves", func() {
				server, _ := makeRelayServer()

				defer func() {
					Expect(server.Close()).To(Succeed())
				}()

				addr := server.Addr().String()

				conn, err := net.Dial("tcp", addr)
				Expect(err).To(Succeed())
				Expect(conn.Close()).To(Succeed())

				res := exchange(addr, protocol.Message{
					Command: protocol.REQ,
					Source:  consumer,
				})
				Expect(res.Command).To(Equal(protocol.MSG))
			})
		})

		Describe("Close", func() {
			It("stops accepting new connections", func() {
				server, _ := makeRelayServer()
				addr := server.Addr().String()

				Expect(server.Close()).To(Succeed())

				_, err := net.Dial("tcp", addr)
				Expect(err).To(HaveOccurred())
			})

			It("is safe to call twice", func() {
				server, _ := makeRelayServer()

				Expect(server.Close()).To(Succeed())
				Expect(server.Close()).To(Succeed())
			})
		})
	})
})

// exchange runs one full request/reply conversation: dial, write, read
// to EOF (the server hangs up after answering), decode.
func exchange(addr string, req protocol.Message) protocol.Message {
	conn, err := net.Dial("tcp", addr)
	Expect(err).To(Succeed())
	defer conn.Close()

	_, err = conn.Write(protocol.Encode(req))
	Expect(err).To(Succeed())

	Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	raw, err := io.ReadAll(conn)
	Expect(err).To(Succeed())

	res, err := protocol.Decode(raw)
	Expect(err).To(Succeed())

	return res
}

func waitForClose(conn net.Conn) {
	// Wait for our client to be disconnected by the server.
	deadline := time.Now().Add(5 * time.Second)

	// This '1' business is because zero-width reads return immediately
	// and do nothing, the test needs to actually attempt a read.
	one := make([]byte, 1)

	for time.Now().Before(deadline) {
		Expect(conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))).To(Succeed())

		if _, err := conn.Read(one); errors.Is(err, io.EOF) {
			return
		}
	}

	Fail("The client was never closed by the server")
}

func makeRelayServer() (*transport.Server, storage.Mailbox) {
	box := storage.NewInmemoryMailbox()

	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	server := transport.NewServer(transport.Options{
		Host: "127.0.0.1",
		Port: 0,

		// TODO(rolly) Reuseport should default to true
		Reuseport: true,

		Handler: relay.New(box, relaySelf, log.Named("relay")),
		Log:     log.Named("transport"),
	})

	// Start does not return until the server is listening, so tests can
	// dial immediately.
	Expect(server.Start(context.Background())).To(Succeed())

	return server, box
}
