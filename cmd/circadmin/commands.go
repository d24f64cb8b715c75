package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pkoernig/borrowing-engine-go/circulation"
	"github.com/pkoernig/borrowing-engine-go/circulation/postgresengine"
)

func newMigrateCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the circulation tables, indexes and constraints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			if err := engine.CreateSchema(cmd.Context()); err != nil {
				return err
			}

			cmd.Println("schema is up to date")

			return nil
		},
	}
}

func newRegisterMemberCmd(cfg *cliConfig) *cobra.Command {
	registration := postgresengine.Registration{}

	registerCmd := &cobra.Command{
		Use:   "register-member",
		Short: "Register a new member with a login account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword("Password for the new member: ")
			if err != nil {
				return err
			}
			registration.Password = password

			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			member, _, err := engine.RegisterMember(cmd.Context(), registration)
			if err != nil {
				return err
			}

			cmd.Printf("registered %s with membership number %s (id %s)\n",
				member.FullName(), member.MembershipNumber, member.ID)

			return nil
		},
	}

	registerCmd.Flags().StringVar(&registration.FirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&registration.LastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&registration.Email, "email", "", "email address")
	registerCmd.Flags().StringVar(&registration.Phone, "phone", "", "phone number")
	registerCmd.Flags().StringVar(&registration.Address, "address", "", "postal address")
	_ = registerCmd.MarkFlagRequired("first-name")
	_ = registerCmd.MarkFlagRequired("last-name")
	_ = registerCmd.MarkFlagRequired("email")

	return registerCmd
}

func newSeedCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a small set of sample members and books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			registrations := []postgresengine.Registration{
				{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "correct-horse"},
				{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Password: "correct-horse"},
				{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Password: "correct-horse"},
			}

			for _, registration := range registrations {
				member, _, err := engine.RegisterMember(cmd.Context(), registration)
				if errors.Is(err, circulation.ErrEmailAlreadyRegistered) {
					cmd.Printf("skipped %s, already registered\n", registration.Email)
					continue
				}
				if err != nil {
					return err
				}

				cmd.Printf("registered %s (%s)\n", member.FullName(), member.MembershipNumber)
			}

			books := []postgresengine.AddBookParams{
				{Title: "The Go Programming Language", Author: "Donovan, Kernighan", ISBN: "9780134190440", Publisher: "Addison-Wesley", PublicationYear: 2015, Language: "en", Copies: 3},
				{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", ISBN: "9781449373320", Publisher: "O'Reilly", PublicationYear: 2017, Language: "en", Copies: 2},
				{Title: "A Philosophy of Software Design", Author: "John Ousterhout", ISBN: "9781732102200", Publisher: "Yaknyam Press", PublicationYear: 2018, Language: "en", Copies: 1},
			}

			for _, params := range books {
				book, err := engine.AddBook(cmd.Context(), params)
				if err != nil {
					return err
				}

				cmd.Printf("added %q with %d copies\n", book.Title, book.TotalCopies)
			}

			return nil
		},
	}
}

func newAddBookCmd(cfg *cliConfig) *cobra.Command {
	params := postgresengine.AddBookParams{}

	addBookCmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a new title to the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			book, err := engine.AddBook(cmd.Context(), params)
			if err != nil {
				return err
			}

			cmd.Printf("added %q with %d copies (id %s)\n", book.Title, book.TotalCopies, book.ID)

			return nil
		},
	}

	addBookCmd.Flags().StringVar(&params.Title, "title", "", "book title")
	addBookCmd.Flags().StringVar(&params.Author, "author", "", "author")
	addBookCmd.Flags().StringVar(&params.ISBN, "isbn", "", "ISBN")
	addBookCmd.Flags().StringVar(&params.Publisher, "publisher", "", "publisher")
	addBookCmd.Flags().IntVar(&params.PublicationYear, "year", 0, "publication year")
	addBookCmd.Flags().StringVar(&params.Language, "language", "en", "language code")
	addBookCmd.Flags().IntVar(&params.Copies, "copies", 1, "number of copies")
	_ = addBookCmd.MarkFlagRequired("title")

	return addBookCmd
}

func newCheckoutCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <member-id> <book-id>",
		Short: "Check a book out for a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, bookID, err := parseTwoIDs(args)
			if err != nil {
				return err
			}

			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			borrowing, err := engine.CheckOut(cmd.Context(), memberID, bookID)
			if err != nil {
				return err
			}

			cmd.Printf("checked out, borrowing %s due %s\n",
				borrowing.ID, borrowing.DueDate.Format("2006-01-02"))

			return nil
		},
	}
}

func newReturnCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "return <borrowing-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			borrowingID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid borrowing id: %w", err)
			}

			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			_, fine, err := engine.Return(cmd.Context(), borrowingID)
			if err != nil {
				return err
			}

			if fine != nil {
				cmd.Printf("returned with fine %s (%s)\n", fine.Amount, fine.Reason)
			} else {
				cmd.Println("returned on time")
			}

			return nil
		},
	}
}

func newRestockCmd(cfg *cliConfig) *cobra.Command {
	var delta int

	restockCmd := &cobra.Command{
		Use:   "restock <book-id>",
		Short: "Add copies of an existing title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid book id: %w", err)
			}

			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			book, err := engine.Restock(cmd.Context(), bookID, delta)
			if err != nil {
				return err
			}

			cmd.Printf("restocked %q, now %d of %d copies available\n",
				book.Title, book.AvailableCopies, book.TotalCopies)

			return nil
		},
	}

	restockCmd.Flags().IntVar(&delta, "copies", 1, "number of copies to add")

	return restockCmd
}

func newSetStatusCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <member-id> <active|suspended|inactive>",
		Short: "Change a member's membership status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid member id: %w", err)
			}

			engine, closer, err := connectEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer()

			member, err := engine.SetMembershipStatus(cmd.Context(), memberID, circulation.MembershipStatus(args[1]))
			if err != nil {
				return err
			}

			cmd.Printf("%s is now %s\n", member.FullName(), member.Status)

			return nil
		},
	}
}

func parseTwoIDs(args []string) (uuid.UUID, uuid.UUID, error) {
	memberID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid member id: %w", err)
	}

	bookID, err := uuid.Parse(args[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid book id: %w", err)
	}

	return memberID, bookID, nil
}

// promptPassword reads a password from the terminal without echo, falling
// back to an error when stdin is not a terminal.
func promptPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", errors.New("refusing to read a password from a non-terminal stdin")
	}

	fmt.Fprint(os.Stderr, prompt)

	passwordBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	return string(passwordBytes), nil
}
