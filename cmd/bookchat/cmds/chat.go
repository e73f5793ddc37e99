package cmds

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/bookchat/pkg/chat"
	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine/factory"
	"github.com/go-go-golems/bookchat/pkg/events"
	"github.com/go-go-golems/bookchat/pkg/selection"
	"github.com/go-go-golems/bookchat/pkg/settings"
)

func NewChatCommand() *cobra.Command {
	var bookKey string
	var title string
	var author string
	var storePath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Discuss a book in an interactive session",
		Long: `Starts an interactive session for one book. Plain input is sent to the
assistant; lines starting with / are commands:

  /select <text>   report a text selection from the book
  /new             start a new conversation
  /list            list conversations for this book
  /quit            exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), bookKey, title, author, storePath)
		},
	}

	cmd.Flags().StringVar(&bookKey, "book-key", "", "Stable identifier of the book being discussed")
	cmd.Flags().StringVar(&title, "title", "", "Book title, used in the assistant's context")
	cmd.Flags().StringVar(&author, "author", "", "Book author, used in the assistant's context")
	cmd.Flags().StringVar(&storePath, "store", "", "Conversation store path (default ~/.bookchat/conversations.json)")
	_ = cmd.MarkFlagRequired("book-key")

	return cmd
}

func runChat(ctx context.Context, bookKey, title, author, storePath string) error {
	storePath, err := resolveStorePath(storePath)
	if err != nil {
		return err
	}

	store, err := conversation.LoadStore(storePath)
	if err != nil {
		return errors.Wrap(err, "could not load conversation store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close conversation store")
		}
	}()

	chatSettings := settings.NewChatSettings()
	chatSettings.UpdateFromViper(viper.GetViper())

	eng, err := factory.NewEngineFromSettings(chatSettings)
	if err != nil {
		return errors.Wrap(err, "could not create backend engine")
	}

	router, err := events.NewEventRouter()
	if err != nil {
		return errors.Wrap(err, "could not create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	router.AddHandler("chat-log", "chat", func(_ context.Context, ev events.Event) error {
		log.Debug().
			Str("event_type", string(ev.Type())).
			Str("conversation_id", ev.Metadata().ConversationID.String()).
			Msg("chat event")
		return nil
	})

	binder := selection.NewBinder(store)
	orch := chat.NewOrchestrator(store, eng,
		chat.WithBook(chat.BookInfo{Key: bookKey, Title: title, Author: author}),
		chat.WithSelectionSource(binder),
		chat.WithEventSinks(router.Sink("chat")),
		chat.WithModel(chatSettings.ModelName()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return repl(ctx, store, binder, orch, bookKey)
	})

	return eg.Wait()
}

type replSession struct {
	store   *conversation.Store
	binder  *selection.Binder
	orch    *chat.Orchestrator
	bookKey string
	scanner *bufio.Scanner
	tty     bool
}

func repl(ctx context.Context, store *conversation.Store, binder *selection.Binder, orch *chat.Orchestrator, bookKey string) error {
	s := &replSession{
		store:   store,
		binder:  binder,
		orch:    orch,
		bookKey: bookKey,
		scanner: bufio.NewScanner(os.Stdin),
		tty:     isatty.IsTerminal(os.Stdout.Fd()),
	}

	decision := binder.EnsureVisible(bookKey)
	if decision.Kind == selection.DecisionCreated {
		s.printOpening(decision.ConversationID)
	} else if conv, ok := store.ActiveConversation(); ok {
		s.printOpening(conv.ID)
	}

	for {
		if s.tty {
			fmt.Print("> ")
		}
		if !s.scanner.Scan() {
			return s.scanner.Err()
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			id := binder.StartNewConversation(bookKey)
			s.printOpening(id)
		case line == "/list":
			for _, conv := range store.ListForBook(bookKey) {
				fmt.Printf("%s  %s  %s\n", conv.ID, conv.UpdatedAt.Format("2006-01-02 15:04"), conv.Label())
			}
		case strings.HasPrefix(line, "/select "):
			s.handleSelection(strings.TrimPrefix(line, "/select "))
		case strings.HasPrefix(line, "/"):
			fmt.Printf("unknown command %s\n", line)
		default:
			if err := s.send(ctx, line); err != nil {
				return err
			}
		}
	}
}

// handleSelection runs the binding policy for a reported selection. When an
// active conversation already exists the reader decides between continuing it
// and starting fresh from the selection.
func (s *replSession) handleSelection(text string) {
	decision := s.binder.ObserveSelection(s.bookKey, selection.Snapshot{Text: text})
	switch decision.Kind {
	case selection.DecisionCreated:
		s.printOpening(decision.ConversationID)
	case selection.DecisionOfferChoice:
		fmt.Print("You have an active conversation. Start a new one for this selection? [y/N] ")
		if !s.scanner.Scan() {
			return
		}
		answer := strings.ToLower(strings.TrimSpace(s.scanner.Text()))
		if answer == "y" || answer == "yes" {
			id := s.binder.StartNewConversation(s.bookKey)
			s.printOpening(id)
		} else {
			s.binder.ContinueActive()
		}
	case selection.DecisionContinue:
	}
}

func (s *replSession) send(ctx context.Context, text string) error {
	id, ok := s.store.Active()
	if !ok {
		decision := s.binder.EnsureVisible(s.bookKey)
		if decision.Kind == selection.DecisionCreated {
			s.printOpening(decision.ConversationID)
		}
		id, ok = s.store.Active()
		if !ok {
			id = s.binder.StartNewConversation(s.bookKey)
		}
	}

	reply, err := s.orch.Send(ctx, id, text)
	if err != nil {
		return err
	}
	fmt.Println(reply.View())
	return nil
}

// printOpening shows the synthetic assistant message that opens the
// conversation.
func (s *replSession) printOpening(id uuid.UUID) {
	conv, ok := s.store.Get(id)
	if !ok || len(conv.Messages) == 0 {
		return
	}
	fmt.Println(conv.Messages[0].View())
}

func resolveStorePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".bookchat", "conversations.json"), nil
}
