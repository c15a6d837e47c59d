package cliui_test

import (
	"bytes"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rolechat/pkg/cliui"
)

// syncBuffer guards a bytes.Buffer written from the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(42 * time.Millisecond)).To(Equal("42ms"))
	})

	It("uses seconds with one decimal above a second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("Step", func() {
	It("returns the error of fn and prints the mark", func() {
		var out syncBuffer
		err := cliui.Step(&out, "connecting", func() error {
			return errors.New("refused")
		})
		Expect(err).To(MatchError("refused"))
		Expect(out.String()).To(ContainSubstring("connecting"))
		Expect(out.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("Spinner", func() {
	It("tolerates redundant starts and stops", func() {
		var out syncBuffer
		sp := cliui.NewSpinner(&out, "typing")

		sp.Stop()
		sp.Start()
		sp.Start()
		Expect(sp.Active()).To(BeTrue())

		sp.Stop()
		sp.Stop()
		Expect(sp.Active()).To(BeFalse())
		Expect(out.String()).To(ContainSubstring("typing"))
	})

	It("can be restarted", func() {
		var out syncBuffer
		sp := cliui.NewSpinner(&out, "typing")

		sp.Start()
		sp.Stop()
		sp.Start()
		Expect(sp.Active()).To(BeTrue())
		sp.Stop()
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the content", func() {
		out, err := cliui.RenderMarkdown("hello **world**", 40)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("hello"))
		Expect(out).To(ContainSubstring("world"))
	})
})
