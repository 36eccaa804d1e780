package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/easelhq/easel/pkg/chat"
	"github.com/easelhq/easel/pkg/storage"
	"github.com/easelhq/easel/pkg/storage/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("FindConversation", func() {
		It("returns ErrNotFound for an unknown id", func() {
			_, err := driver.FindConversation(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})
	})

	Describe("CreateConversation", func() {
		It("creates the conversation together with its first message", func() {
			conv, err := driver.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role:    chat.RoleUser,
				Content: "hello",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.ID).To(Equal("conv-1"))
			Expect(conv.OwnerID).To(Equal("default"))

			msgs, err := driver.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Role).To(Equal(chat.RoleUser))
			Expect(msgs[0].Content).To(Equal("hello"))
			Expect(msgs[0].ID).NotTo(BeEmpty())
		})

		It("is idempotent on the conversation id", func() {
			_, err := driver.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role: chat.RoleUser, Content: "a",
			})
			Expect(err).NotTo(HaveOccurred())

			conv, err := driver.CreateConversation(ctx, "conv-1", "other", storage.Message{
				Role: chat.RoleUser, Content: "b",
			})
			Expect(err).NotTo(HaveOccurred())
			// The original row wins; the second first-message still lands.
			Expect(conv.OwnerID).To(Equal("default"))

			summaries, err := driver.ListConversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0].MessageCount).To(Equal(2))
		})
	})

	Describe("AppendMessage", func() {
		It("rejects unknown conversations", func() {
			_, err := driver.AppendMessage(ctx, "missing", chat.RoleUser, "hi")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("keeps strict append order across turns", func() {
			_, err := driver.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role: chat.RoleUser, Content: "user one",
			})
			Expect(err).NotTo(HaveOccurred())

			turns := []struct{ role, content string }{
				{chat.RoleAssistant, "assistant one"},
				{chat.RoleUser, "user two"},
				{chat.RoleAssistant, "assistant two"},
			}
			for _, turn := range turns {
				_, err := driver.AppendMessage(ctx, "conv-1", turn.role, turn.content)
				Expect(err).NotTo(HaveOccurred())
			}

			msgs, err := driver.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(4))

			var contents []string
			for _, m := range msgs {
				contents = append(contents, m.Content)
			}
			Expect(contents).To(Equal([]string{
				"user one", "assistant one", "user two", "assistant two",
			}))
		})

		It("round-trips unbounded UTF-8 content", func() {
			_, err := driver.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role: chat.RoleUser, Content: "q",
			})
			Expect(err).NotTo(HaveOccurred())

			content := "héllo wörld 🎨 {artifact type=\"code\"}ƒ(x){/artifact}"
			stored, err := driver.AppendMessage(ctx, "conv-1", chat.RoleAssistant, content)
			Expect(err).NotTo(HaveOccurred())

			msgs, err := driver.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[1].ID).To(Equal(stored.ID))
			Expect(msgs[1].Content).To(Equal(content))
		})
	})

	Describe("persistence on disk", func() {
		It("survives reopening the database file", func() {
			tmpDir, err := os.MkdirTemp("", "easel-sqlite-test-*")
			Expect(err).NotTo(HaveOccurred())
			defer os.RemoveAll(tmpDir)
			path := filepath.Join(tmpDir, "easel.db")

			first, err := sqlite.NewDriver(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			_, err = first.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role: chat.RoleUser, Content: "persisted",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.NewDriver(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			msgs, err := second.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Content).To(Equal("persisted"))
		})
	})

	Describe("Import", func() {
		It("skips rows that already exist", func() {
			conv, err := driver.CreateConversation(ctx, "conv-1", "default", storage.Message{
				Role: chat.RoleUser, Content: "hello",
			})
			Expect(err).NotTo(HaveOccurred())
			msgs, err := driver.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())

			isNew, err := driver.ImportConversation(ctx, conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			isNew, err = driver.ImportMessage(ctx, msgs[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			imported := *msgs[0]
			imported.ID = "fresh-id"
			isNew, err = driver.ImportMessage(ctx, &imported)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())
		})
	})
})
