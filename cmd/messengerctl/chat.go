package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"messenger-service/internal/messenger"
	"messenger-service/internal/models"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List your chat rooms, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		rooms, err := e.ListRooms(ctx)
		if err != nil {
			return err
		}
		for _, r := range rooms {
			printRoom(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var friendsCmd = &cobra.Command{
	Use:     "friends",
	Aliases: []string{"friend"},
	Short:   "List your friends",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		friends, err := e.ListFriends(ctx)
		if err != nil {
			return err
		}
		for _, f := range friends {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s <%s>\t%s\n", f.UserID, f.Name(), f.Email, f.Status)
		}
		return nil
	},
}

var friendAddCmd = &cobra.Command{
	Use:   "add EMAIL",
	Short: "Add the user with EMAIL to your friends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		if !e.AddFriend(ctx, args[0]) {
			return errors.New("friend was not added")
		}
		return nil
	},
}

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Create or leave chat rooms",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create USER_ID...",
	Short: "Start a chat with one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		var name *string
		if v, _ := cmd.Flags().GetString("name"); v != "" {
			name = &v
		}
		group, _ := cmd.Flags().GetBool("group")
		id := e.CreateRoom(ctx, args, group || len(args) > 1, name)
		if id == "" {
			return errors.New("room was not created")
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var roomLeaveCmd = &cobra.Command{
	Use:   "leave ROOM_ID",
	Short: "Leave a chat room; the last participant deletes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		if _, err := e.ListRooms(ctx); err != nil {
			return err
		}
		if !e.LeaveRoom(ctx, args[0]) {
			return errors.New("room was not left")
		}
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages ROOM_ID",
	Short: "Print the history of a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		if err := e.SelectRoom(ctx, args[0]); err != nil {
			return err
		}
		for _, m := range e.Messages() {
			printMessage(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send ROOM_ID TEXT...",
	Short: "Send a message to a room",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return messenger.ErrEmptyContent
		}
		msgType, _ := cmd.Flags().GetString("type")
		if !models.MessageType(msgType).Valid() {
			return errors.Errorf("unknown message type %q", msgType)
		}
		var persona *string
		if v, _ := cmd.Flags().GetString("persona"); v != "" {
			persona = &v
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		if !e.SendMessage(ctx, content, args[0], models.MessageType(msgType), persona) {
			return errors.New("message was not sent")
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [ROOM_ID]",
	Short: "Follow new messages until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		defer e.Close()

		w := newWatcher(cmd.OutOrStdout(), e)
		if err := e.Start(ctx); err != nil {
			return err
		}
		if len(args) == 1 {
			if err := e.SelectRoom(ctx, args[0]); err != nil {
				return err
			}
		}
		w.prime()
		e.OnChange(w.render)

		<-ctx.Done()
		return nil
	},
}

func init() {
	roomCreateCmd.Flags().String("name", "", "Room name, required for groups")
	roomCreateCmd.Flags().Bool("group", false, "Create a group even with a single other user")
	sendCmd.Flags().String("type", string(models.MessageText), "Message type: text, image, file or ai")
	sendCmd.Flags().String("persona", "", "AI persona tag")

	friendsCmd.AddCommand(friendAddCmd)
	roomCmd.AddCommand(roomCreateCmd, roomLeaveCmd)
	rootCmd.AddCommand(roomsCmd, friendsCmd, roomCmd, messagesCmd, sendCmd, watchCmd)
}

// watcher prints messages and room activity the terminal has not shown yet.
type watcher struct {
	mu     sync.Mutex
	out    io.Writer
	engine *messenger.Engine
	shown  map[string]struct{}
	latest map[string]string
}

func newWatcher(out io.Writer, e *messenger.Engine) *watcher {
	return &watcher{out: out, engine: e, shown: map[string]struct{}{}, latest: map[string]string{}}
}

// prime prints the current history and remembers what is already visible.
func (w *watcher) prime() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.engine.Messages() {
		printMessage(w.out, m)
		w.shown[m.ID] = struct{}{}
	}
	for _, r := range w.engine.Rooms() {
		if r.LastMessage != nil {
			w.latest[r.ID] = r.LastMessage.ID
		}
	}
}

func (w *watcher) render() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.engine.SelectedRoomID() != "" {
		for _, m := range w.engine.Messages() {
			if m.Pending {
				continue
			}
			if _, ok := w.shown[m.ID]; ok {
				continue
			}
			w.shown[m.ID] = struct{}{}
			printMessage(w.out, m)
		}
		return
	}
	for _, r := range w.engine.Rooms() {
		if r.LastMessage == nil || w.latest[r.ID] == r.LastMessage.ID {
			continue
		}
		w.latest[r.ID] = r.LastMessage.ID
		fmt.Fprintf(w.out, "[%s] %s\n", r.DisplayName, r.LastMessage.Content)
	}
}

func printRoom(w io.Writer, r models.RoomView) {
	kind := "direct"
	switch {
	case r.AIPersona != nil:
		kind = "ai:" + *r.AIPersona
	case r.IsGroup:
		kind = "group"
	}
	preview := ""
	if r.LastMessage != nil {
		preview = r.LastMessage.Content
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%d members\t%s\n", r.ID, kind, r.DisplayName, len(r.Participants), preview)
}

func printMessage(w io.Writer, m models.MessageView) {
	sender := m.SenderID
	if m.Sender != nil {
		sender = m.Sender.Name()
	}
	tag := ""
	if m.MessageType != models.MessageText && m.MessageType != "" {
		tag = " (" + string(m.MessageType)
		if m.AIPersona != nil {
			tag += ":" + *m.AIPersona
		}
		tag += ")"
	}
	fmt.Fprintf(w, "%s %s%s: %s\n", m.CreatedAt.Local().Format("15:04"), sender, tag, m.Content)
}
