// ABOUTME: Operator CLI for lexgate account and conversation management
// ABOUTME: Works directly against the configured SQLite database

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/config"
	"github.com/atrio-legal/lexgate/internal/store"
)

const banner = `
 _                       _                     _           _
| | _____  ____ _  __ _| |_ ___        __ _  __| |_ __ ___ (_)_ __
| |/ _ \ \/ / _' |/ _' | __/ _ \_____ / _' |/ _' | '_ ' _ \| | '_ \
| |  __/>  < (_| | (_| | ||  __/_____| (_| | (_| | | | | | | | | | |
|_|\___/_/\_\__, |\__, |\__\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
            |___/ |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "clients":
		err = withStore(func(ctx context.Context, st store.Store) error {
			return cmdClients(ctx, st)
		})
	case "conversations":
		err = withStore(func(ctx context.Context, st store.Store) error {
			return cmdConversations(ctx, st)
		})
	case "tail":
		err = withStore(func(ctx context.Context, st store.Store) error {
			return cmdTail(ctx, st, args)
		})
	case "create-client":
		err = withStore(func(ctx context.Context, st store.Store) error {
			return cmdCreateClient(ctx, st, args)
		})
	case "create-admin":
		err = withStore(func(ctx context.Context, st store.Store) error {
			return cmdCreateAdmin(ctx, st, args)
		})
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: lexgate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  clients                                   List client accounts")
	fmt.Println("  conversations                             List conversations by recent activity")
	fmt.Println("  tail <client-id> [n]                      Show the last n messages (default 20)")
	fmt.Println("  create-client --name N --email E          Create a client account (prompts for password)")
	fmt.Println("  create-admin --username U --name N        Create a staff account (prompts for password)")
	fmt.Println()
	fmt.Println("The database path comes from the server config (LEXGATE_CONFIG).")
}

// withStore loads the config, opens the store, and runs fn against it.
func withStore(fn func(context.Context, store.Store) error) error {
	configPath := os.Getenv("LEXGATE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fn(ctx, st)
}

func cmdClients(ctx context.Context, st store.Store) error {
	clients, err := st.ListClients(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing clients: %w", err)
	}

	if len(clients) == 0 {
		fmt.Println("No clients.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCREATED")
	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Email, c.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func cmdConversations(ctx context.Context, st store.Store) error {
	convs, err := st.ListConversations(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLIENT\tLAST MESSAGE\tCREATED")
	for _, conv := range convs {
		clientName := conv.ClientID
		if client, err := st.GetClient(ctx, conv.ClientID); err == nil {
			clientName = client.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			conv.ID,
			clientName,
			conv.LastMessageAt.Format(time.RFC3339),
			conv.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func cmdTail(ctx context.Context, st store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tail <client-id> [n]")
	}
	clientID := args[0]

	limit := 20
	if len(args) > 1 {
		if _, err := fmt.Sscanf(args[1], "%d", &limit); err != nil || limit < 1 {
			return fmt.Errorf("n must be a positive integer")
		}
	}

	conv, err := st.GetConversationByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("no conversation for client %s: %w", clientID, err)
	}

	messages, err := st.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	clientColor := color.New(color.FgGreen)
	adminColor := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	for _, msg := range messages {
		gray.Printf("%s ", msg.CreatedAt.Format("2006-01-02 15:04:05"))
		if msg.SenderRole == store.RoleAdmin {
			adminColor.Printf("[firm] ")
		} else {
			clientColor.Printf("[client] ")
		}
		fmt.Println(msg.Body)
	}
	return nil
}

func cmdCreateClient(ctx context.Context, st store.Store, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	name := flags["name"]
	email := flags["email"]
	if name == "" || email == "" {
		return fmt.Errorf("--name and --email are required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	client := &store.Client{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Phone:        flags["phone"],
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := st.CreateClient(ctx, client); err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	color.Green("Created client %s", client.ID)
	return nil
}

func cmdCreateAdmin(ctx context.Context, st store.Store, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	username := flags["username"]
	if username == "" {
		return fmt.Errorf("--username is required")
	}
	displayName := flags["name"]
	if displayName == "" {
		displayName = username
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user := &store.AdminUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
	}
	if err := st.CreateAdminUser(ctx, user); err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	color.Green("Created admin %s", user.ID)
	return nil
}

// parseFlags handles "--key value" and "--key=value" argument styles.
func parseFlags(args []string) (map[string]string, error) {
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
		arg = strings.TrimPrefix(arg, "--")

		if key, value, ok := strings.Cut(arg, "="); ok {
			flags[key] = value
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s requires a value", arg)
		}
		flags[arg] = args[i+1]
		i++
	}
	return flags, nil
}

// readPassword reads a password from stdin. Piped input is supported so the
// command can be scripted.
func readPassword() (string, error) {
	fmt.Print("Password: ")
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return strings.TrimSpace(password), nil
}
