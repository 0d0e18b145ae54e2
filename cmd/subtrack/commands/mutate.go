package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// payloadFlags are the editable subscription fields shared by add and edit.
type payloadFlags struct {
	name        string
	price       string
	category    string
	description string
	holder      string
	email       string
}

func (f *payloadFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "service name, e.g. Spotify")
	fs.StringVar(&f.price, "price", "0", "price per billing period, e.g. 9.99")
	fs.StringVar(&f.category, "category", "", "category, e.g. Music")
	fs.StringVar(&f.description, "description", "", "free-form notes")
	fs.StringVar(&f.holder, "holder", "", "name of the account holder")
	fs.StringVar(&f.email, "email", "", "email address tied to the account")
}

// overlay copies every flag the user set onto p.
func (f *payloadFlags) overlay(fs *pflag.FlagSet, p *subscription.Payload) error {
	if fs.Changed("name") {
		p.Name = f.name
	}
	if fs.Changed("price") {
		price, err := subscription.ParsePrice(f.price)
		if err != nil {
			return err
		}
		p.Price = price
	}
	if fs.Changed("category") {
		p.Category = f.category
	}
	if fs.Changed("description") {
		p.Description = f.description
	}
	if fs.Changed("holder") {
		p.AccountHolder = f.holder
	}
	if fs.Changed("email") {
		p.AccountEmail = f.email
	}
	return nil
}

func (f *payloadFlags) anyChanged(fs *pflag.FlagSet) bool {
	for _, name := range []string{"name", "price", "category", "description", "holder", "email"} {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

func addCmd(a *app) *cobra.Command {
	var flags payloadFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a subscription",
		Example: `  subtrack add --name Spotify --price 9.99 --category Music \
    --holder "Ana Silva" --email ana@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p subscription.Payload
			if err := flags.overlay(cmd.Flags(), &p); err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			rec, err := a.sess.Create(cmd.Context(), p)
			if err := a.report(cmd, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ID: %s\n", rec.ID)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func editCmd(a *app) *cobra.Command {
	var flags payloadFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a subscription",
		Long:  "Change fields of a subscription. Fields without a flag keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !flags.anyChanged(cmd.Flags()) {
				return errors.New("nothing to change, pass at least one field flag")
			}
			if err := a.sess.Refresh(cmd.Context()); err != nil {
				return a.report(cmd, err)
			}
			rec, ok := a.sess.Find(id)
			if !ok {
				return fmt.Errorf("subscription %s not found", id)
			}
			p := rec.Payload
			if err := flags.overlay(cmd.Flags(), &p); err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			_, err := a.sess.Update(cmd.Context(), id, p)
			return a.report(cmd, err)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a subscription",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.report(cmd, a.sess.Delete(cmd.Context(), args[0]))
		},
	}
}
