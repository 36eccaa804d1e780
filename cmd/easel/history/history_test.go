package historycmder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/easelhq/easel/pkg/chat"
	"github.com/easelhq/easel/pkg/storage"
	"github.com/easelhq/easel/pkg/storage/sqlite"
)

var _ = Describe("History Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		dbPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "easel-history-test-*")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(tmpDir, "easel.db")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	seed := func(conversationID, userText, assistantText string) {
		driver, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		_, err = driver.CreateConversation(ctx, conversationID, "default", storage.Message{
			Role: chat.RoleUser, Content: userText,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.AppendMessage(ctx, conversationID, chat.RoleAssistant, assistantText)
		Expect(err).NotTo(HaveOccurred())
	}

	run := func(args ...string) (string, error) {
		cmd := NewHistoryCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("prints both turns with raw output", func() {
		seed("conv-1", "what is two plus two?", "four")

		out, err := run("--sqlite", dbPath, "--raw", "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("--- user"))
		Expect(out).To(ContainSubstring("what is two plus two?"))
		Expect(out).To(ContainSubstring("--- assistant"))
		Expect(out).To(ContainSubstring("four"))
	})

	It("frames artifact blocks with their title", func() {
		seed("conv-1", "write code",
			`sure {artifact type="code" title="Adder" language="go"}a + b{/artifact} done`)

		out, err := run("--sqlite", dbPath, "--raw", "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("┌─ Adder"))
		Expect(out).To(ContainSubstring("a + b"))
		Expect(out).To(ContainSubstring("└─"))
		// The markup itself is never printed.
		Expect(out).NotTo(ContainSubstring("{artifact"))
	})

	It("fails cleanly on an unknown conversation", func() {
		driver, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		driver.Close()

		_, err = run("--sqlite", dbPath, "missing")
		Expect(err).To(MatchError(ContainSubstring("not found")))
	})
})
