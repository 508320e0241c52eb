package relay_test

import (
	"errors"
	"net/netip"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
	"github.com/luma/courier/relay"
	"github.com/luma/courier/storage"
)

var _ = Describe("relay / Handler", func() {
	var (
		box     *storage.InmemoryMailbox
		handler *relay.Handler

		self     = netip.MustParseAddr("10.9.9.9")
		producer = netip.MustParseAddr("10.0.0.1")
		consumer = netip.MustParseAddr("10.0.0.2")
	)

	BeforeEach(func() {
		box = storage.NewInmemoryMailbox()
		handler = relay.New(box, self, zap.NewNop())
	})

	Describe("SEND", func() {
		It("stores the payload and acknowledges", func() {
			reply, err := handler.Handle(protocol.Message{
				Command:     protocol.SEND,
				Source:      producer,
				Destination: self,
				Payload:     []byte("hello"),
			})

			Expect(err).To(Succeed())
			Expect(reply.Command).To(Equal(protocol.ACK))
			Expect(reply.Source).To(Equal(producer))
			Expect(reply.Destination).To(Equal(self))
			Expect(reply.Payload).To(BeEmpty())

			Expect(box.Len()).To(Equal(1))
		})

		It("stores entries from an anonymous producer", func() {
			reply, err := handler.Handle(protocol.Message{
				Command: protocol.SEND,
				Payload: []byte("unsigned"),
			})

			Expect(err).To(Succeed())
			Expect(reply.Command).To(Equal(protocol.ACK))
			Expect(reply.Source.IsValid()).To(BeFalse())

			entry, ok := box.TryDequeue()
			Expect(ok).To(BeTrue())
			Expect(entry.Source.IsValid()).To(BeFalse())
			Expect(entry.Payload).To(Equal([]byte("unsigned")))
		})
	})

	Describe("REQ", func() {
		It("forwards the oldest stored message", func() {
			_, err := handler.Handle(protocol.Message{
				Command:     protocol.SEND,
				Source:      producer,
				Destination: self,
				Payload:     []byte("hello"),
			})
			Expect(err).To(Succeed())

			reply, err := handler.Handle(protocol.Message{
				Command: protocol.REQ,
				Source:  consumer,
			})

			Expect(err).To(Succeed())
			Expect(reply.Command).To(Equal(protocol.MSG))
			Expect(reply.Source).To(Equal(producer))
			Expect(reply.Destination).To(Equal(self))
			Expect(reply.Payload).To(Equal([]byte("hello")))

			Expect(box.Len()).To(Equal(0))
		})

		It("replies with the empty sentinel when nothing is pending", func() {
			reply, err := handler.Handle(protocol.Message{
				Command: protocol.REQ,
				Source:  consumer,
			})

			Expect(err).To(Succeed())
			Expect(reply.Command).To(Equal(protocol.MSG))
			Expect(reply.Source.IsValid()).To(BeFalse())
			Expect(reply.Destination.IsValid()).To(BeFalse())
			Expect(reply.Payload).To(BeEmpty())
		})

		It("drains the global head regardless of who asks", func() {
			_, err := handler.Handle(protocol.Message{
				Command:     protocol.SEND,
				Source:      producer,
				Destination: consumer,
				Payload:     []byte("for someone else"),
			})
			Expect(err).To(Succeed())

			// There is one mailbox for every destination, so a request
			// from any consumer receives the head entry.
			reply, err := handler.Handle(protocol.Message{
				Command: protocol.REQ,
				Source:  producer,
			})

			Expect(err).To(Succeed())
			Expect(reply.Payload).To(Equal([]byte("for someone else")))
		})
	})

	Describe("protocol violations", func() {
		It("rejects replies arriving as requests", func() {
			for _, command := range []protocol.Command{protocol.ACK, protocol.MSG} {
				_, err := handler.Handle(protocol.Message{Command: command})
				Expect(errors.Is(err, relay.ErrUnexpectedCommand)).To(BeTrue())
			}
		})

		It("rejects commands outside the protocol", func() {
			_, err := handler.Handle(protocol.Message{Command: protocol.Command(9)})
			Expect(errors.Is(err, relay.ErrUnexpectedCommand)).To(BeTrue())
		})

		It("leaves the mailbox untouched on a violation", func() {
			_, err := handler.Handle(protocol.Message{
				Command: protocol.SEND,
				Source:  producer,
				Payload: []byte("kept"),
			})
			Expect(err).To(Succeed())

			_, err = handler.Handle(protocol.Message{Command: protocol.Command(42)})
			Expect(err).To(HaveOccurred())

			Expect(box.Len()).To(Equal(1))
		})
	})
})
