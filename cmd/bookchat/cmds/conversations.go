package cmds

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/bookchat/pkg/conversation"
)

func NewConversationsCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Inspect and manage stored conversations",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "Conversation store path (default ~/.bookchat/conversations.json)")

	cmd.AddCommand(newListCommand(&storePath))
	cmd.AddCommand(newPruneCommand(&storePath))
	cmd.AddCommand(newDeleteCommand(&storePath))

	return cmd
}

func openStore(storePath string) (*conversation.Store, error) {
	storePath, err := resolveStorePath(storePath)
	if err != nil {
		return nil, err
	}
	store, err := conversation.LoadStore(storePath)
	if err != nil {
		return nil, errors.Wrap(err, "could not load conversation store")
	}
	return store, nil
}

func newListCommand(storePath *string) *cobra.Command {
	var bookKey string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*storePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var convs []*conversation.Conversation
			if bookKey != "" {
				convs = store.ListForBook(bookKey)
			} else {
				convs = store.All()
			}

			activeID, hasActive := store.Active()
			for _, conv := range convs {
				marker := " "
				if hasActive && conv.ID == activeID {
					marker = "*"
				}
				fmt.Printf("%s %s  %-20s  %s  %s\n",
					marker, conv.ID, conv.BookKey,
					conv.UpdatedAt.Format("2006-01-02 15:04"), conv.Label())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bookKey, "book-key", "", "Only list conversations for this book")

	return cmd
}

func newPruneCommand(storePath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove conversations not updated within the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*storePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			removed := store.PruneOlderThan(days)
			fmt.Printf("removed %d conversation(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Retention window in days")

	return cmd
}

func newDeleteCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrap(err, "invalid conversation id")
			}

			store, err := openStore(*storePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			conv, ok := store.Get(id)
			if !ok {
				return errors.Wrapf(conversation.ErrNotFound, "delete %s", id)
			}
			bookKey := conv.BookKey

			if err := store.Remove(id); err != nil {
				return err
			}

			// keep the book's most recent remaining conversation selected, the
			// way the reading surface does after clearing a chat
			if remaining := store.ListForBook(bookKey); len(remaining) > 0 {
				_ = store.SetActive(remaining[0].ID)
			}

			fmt.Printf("deleted %s\n", id)
			return nil
		},
	}
}
