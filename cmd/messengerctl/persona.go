package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"messenger-service/internal/messenger"
	"messenger-service/internal/persona"
)

var personaCmd = &cobra.Command{
	Use:     "persona",
	Aliases: []string{"personas"},
	Short:   "List AI personas or start a chat with one",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printPersonas(cmd.OutOrStdout())
		return nil
	},
}

var personaRoomCmd = &cobra.Command{
	Use:   "room PERSONA_ID",
	Short: "Open a chat room with an AI persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger())
		if err != nil {
			return err
		}
		id := e.CreatePersonaRoom(ctx, args[0])
		if id == "" {
			return errors.New("room was not created")
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		for _, m := range e.Messages() {
			printMessage(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask ROOM_ID TEXT...",
	Short: "Ask the room's AI persona and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return messenger.ErrEmptyContent
		}
		personaID, _ := cmd.Flags().GetString("persona")

		ctx, cancel := commandContext(cmd)
		defer cancel()
		e, err := newEngine(ctx, cmd.ErrOrStderr(), newLogger(),
			messenger.WithResponder(persona.NewCannedResponder(persona.WithThinkTime(time.Second, 3*time.Second))),
		)
		if err != nil {
			return err
		}
		if _, err := e.ListRooms(ctx); err != nil {
			return err
		}
		if err := e.SelectRoom(ctx, args[0]); err != nil {
			return err
		}
		if !e.AskPersona(ctx, args[0], personaID, content) {
			return errors.New("no reply")
		}
		if msgs := e.Messages(); len(msgs) > 0 {
			printMessage(cmd.OutOrStdout(), msgs[len(msgs)-1])
		}
		return nil
	},
}

func printPersonas(w io.Writer) {
	for _, p := range persona.All() {
		fmt.Fprintf(w, "%s\t%s %s\t%s\n", p.ID, p.Icon, p.Name, p.Description)
	}
}

func init() {
	askCmd.Flags().String("persona", "", "Persona to answer instead of the room's own")

	personaCmd.AddCommand(personaRoomCmd)
	rootCmd.AddCommand(personaCmd, askCmd)
}
