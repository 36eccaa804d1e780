package mergecmder

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

var _ = Describe("Merge Command", func() {
	var (
		ctx     context.Context
		tmpDir  string
		srcPath string
		dstPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "easel-merge-test-*")
		Expect(err).NotTo(HaveOccurred())
		srcPath = filepath.Join(tmpDir, "source.sqlite")
		dstPath = filepath.Join(tmpDir, "target.sqlite")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	seed := func(path, conversationID string, turns ...string) {
		driver, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(turns).NotTo(BeEmpty())
		_, err = driver.CreateConversation(ctx, conversationID, "default", storage.Message{
			Role: chat.RoleUser, Content: turns[0],
		})
		Expect(err).NotTo(HaveOccurred())

		role := chat.RoleAssistant
		for _, content := range turns[1:] {
			_, err := driver.AppendMessage(ctx, conversationID, role, content)
			Expect(err).NotTo(HaveOccurred())
			if role == chat.RoleAssistant {
				role = chat.RoleUser
			} else {
				role = chat.RoleAssistant
			}
		}
	}

	countMessages := func(path, conversationID string) int {
		driver, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		msgs, err := driver.ListMessages(ctx, conversationID)
		Expect(err).NotTo(HaveOccurred())
		return len(msgs)
	}

	It("merges conversations from source into target", func() {
		seed(srcPath, "from-source", "hello", "hi back")
		seed(dstPath, "from-target", "already here")

		cmd := NewMergeCmd()
		cmd.SetArgs([]string{"--sqlite", dstPath, srcPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		dst, err := sqlite.NewDriver(ctx, dstPath)
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()

		summaries, err := dst.ListConversations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(HaveLen(2))
		Expect(countMessages(dstPath, "from-source")).To(Equal(2))
		Expect(countMessages(dstPath, "from-target")).To(Equal(1))
	})

	It("deduplicates when merging the same source twice", func() {
		seed(srcPath, "conv-1", "dedup test", "reply")

		// Create empty target.
		dst, err := sqlite.NewDriver(ctx, dstPath)
		Expect(err).NotTo(HaveOccurred())
		dst.Close()

		for i := 0; i < 2; i++ {
			cmd := NewMergeCmd()
			cmd.SetArgs([]string{"--sqlite", dstPath, srcPath})
			Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		}

		Expect(countMessages(dstPath, "conv-1")).To(Equal(2))
	})

	It("treats an empty source as a no-op", func() {
		empty, err := sqlite.NewDriver(ctx, srcPath)
		Expect(err).NotTo(HaveOccurred())
		empty.Close()

		cmd := NewMergeCmd()
		cmd.SetArgs([]string{"--sqlite", dstPath, srcPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		dst, err := sqlite.NewDriver(ctx, dstPath)
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()
		summaries, err := dst.ListConversations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(BeEmpty())
	})
})
