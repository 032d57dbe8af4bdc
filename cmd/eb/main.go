package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"essaybid/internal/app"
	"essaybid/internal/config"
	"essaybid/internal/db"
	"essaybid/internal/domain"
	"essaybid/internal/engine"
	"essaybid/internal/repo"
	"essaybid/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "eb",
	Short: "Essay Bid marketplace CLI",
	Long: `Essay Bid runs a bidding marketplace for academic writing work.
- Workspace: the .essaybid directory holding the SQLite database; settings live in the DB and are imported explicitly.
- Requests: students open essay requests that move pending -> accepted/rejected.
- Bids: supervisors bid on pending requests; an admin accepts one bid, which assigns the supervisor and closes the request.
- Prices: admins can quote a price on a request directly.
- Chat: the student and assigned supervisor talk through an admin moderation gate.
- Questions: a shared Q&A board answered by admins.
- Notifications: derived side effects of the above, per account.
- Event log: diary of every command, view with 'eb log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ESSAYBID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting account id")
	rootCmd.PersistentFlags().String("actor-role", "admin", "acting role (student, supervisor, admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-role", rootCmd.PersistentFlags().Lookup("actor-role"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(bidCmd())
	rootCmd.AddCommand(priceCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(questionCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func actor() domain.Actor {
	return domain.Actor{
		ID:   viper.GetString("actor-id"),
		Role: domain.Role(viper.GetString("actor-role")),
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Bootstrap(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func initCmd() *cobra.Command {
	var adminEmail, adminName, adminPassword string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace with settings and the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, created, err := app.EnsureAdmin(ctx, e, app.AdminSeed{
					Email:    adminEmail,
					Name:     adminName,
					Password: adminPassword,
				})
				if err != nil {
					return err
				}
				if created {
					fmt.Printf("workspace ready; admin %s created (%s)\n", u.Email, u.ID)
				} else {
					fmt.Printf("workspace ready; admin %s already exists\n", u.Email)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "first admin email")
	cmd.Flags().StringVar(&adminName, "admin-name", "", "first admin name")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "first admin password")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userUpdateCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var email, name, role, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, actor(), engine.UserCreateOptions{
					Email:    email,
					Name:     name,
					Role:     domain.Role(role),
					Password: password,
				})
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "student", "role (student, supervisor, admin)")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListUsers(ctx, actor(), repo.UserFilters{Role: domain.Role(role)})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role", "Active"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role, u.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var id, name, role, password string
	var active bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			opts := engine.UserUpdateOptions{}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("role") {
				r := domain.Role(role)
				opts.Role = &r
			}
			if cmd.Flags().Changed("active") {
				opts.Active = &active
			}
			if cmd.Flags().Changed("password") {
				opts.Password = &password
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.UpdateUser(ctx, actor(), id, opts)
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "account id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "role")
	cmd.Flags().BoolVar(&active, "active", true, "account active")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteUser(ctx, actor(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "account id")
	return cmd
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{Use: "request", Short: "Manage essay requests"}
	req.AddCommand(requestCreateCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	req.AddCommand(requestDeleteCmd())
	req.AddCommand(requestAssignCmd())
	return req
}

func requestCreateCmd() *cobra.Command {
	var title, dueDate, assignmentType, fieldOfStudy, extra string
	var wordCount int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a request for bidding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.CreateRequest(ctx, actor(), engine.RequestCreateOptions{
					Title:            title,
					DueDate:          dueDate,
					WordCount:        wordCount,
					AssignmentType:   assignmentType,
					FieldOfStudy:     fieldOfStudy,
					ExtraInformation: extra,
				})
				if err != nil {
					return err
				}
				return printJSON(req)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "request title")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (RFC 3339)")
	cmd.Flags().IntVar(&wordCount, "words", 0, "word count")
	cmd.Flags().StringVar(&assignmentType, "type", "essay", "assignment type")
	cmd.Flags().StringVar(&fieldOfStudy, "field", "", "field of study")
	cmd.Flags().StringVar(&extra, "extra", "", "extra information")
	return cmd
}

func requestListCmd() *cobra.Command {
	var status, field, search string
	var assigned bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListRequests(ctx, actor(), engine.RequestQuery{
					Status:       status,
					FieldOfStudy: field,
					Search:       search,
					Assigned:     assigned,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Field", "Due", "Supervisor"})
				for _, r := range items {
					sup := ""
					if r.AssignedSupervisor != nil {
						sup = *r.AssignedSupervisor
					}
					tw.AppendRow(table.Row{r.ID, r.Title, r.Status, r.FieldOfStudy, r.DueDate, sup})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&field, "field", "", "filter by field of study")
	cmd.Flags().StringVar(&search, "search", "", "search title and notes")
	cmd.Flags().BoolVar(&assigned, "assigned", false, "only requests with a supervisor assigned")
	return cmd
}

func requestShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.GetRequest(ctx, actor(), id)
				if err != nil {
					return err
				}
				return printJSON(req)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "request id")
	return cmd
}

func requestDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRequest(ctx, actor(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "request id")
	return cmd
}

func requestAssignCmd() *cobra.Command {
	var id, supervisor string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a supervisor to a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || supervisor == "" {
				return fmt.Errorf("--id and --supervisor required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.AssignSupervisor(ctx, actor(), id, supervisor)
				if err != nil {
					return err
				}
				return printJSON(req)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "request id")
	cmd.Flags().StringVar(&supervisor, "supervisor", "", "supervisor account id")
	return cmd
}

func bidCmd() *cobra.Command {
	bid := &cobra.Command{Use: "bid", Short: "Manage bids"}
	bid.AddCommand(bidCreateCmd())
	bid.AddCommand(bidListCmd())
	bid.AddCommand(bidSetStatusCmd("accept", "Accept a pending bid", domain.StatusAccepted))
	bid.AddCommand(bidSetStatusCmd("reject", "Reject a pending bid", domain.StatusRejected))
	return bid
}

func bidCreateCmd() *cobra.Command {
	var requestID, notes string
	var price float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Place a bid on a pending request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.CreateBid(ctx, actor(), engine.BidCreateOptions{
					RequestID: requestID,
					Price:     price,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id")
	cmd.Flags().Float64Var(&price, "price", 0, "bid price")
	cmd.Flags().StringVar(&notes, "notes", "", "bid notes")
	return cmd
}

func bidListCmd() *cobra.Command {
	var requestID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bids visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListBids(ctx, actor(), engine.BidQuery{RequestID: requestID, Status: status})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Request", "Supervisor", "Price", "Status"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.ID, b.RequestID, b.SupervisorID, fmt.Sprintf("%.2f", b.Price), b.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "filter by request")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func bidSetStatusCmd(use, short, status string) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.SetBidStatus(ctx, actor(), id, status)
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "bid id")
	return cmd
}

func priceCmd() *cobra.Command {
	price := &cobra.Command{Use: "price", Short: "Manage admin price quotes"}
	price.AddCommand(priceSetCmd())
	price.AddCommand(priceListCmd())
	price.AddCommand(priceDeleteCmd())
	return price
}

func priceSetCmd() *cobra.Command {
	var requestID string
	var amount float64
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Quote a price on a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetAdminPrice(ctx, actor(), requestID, amount)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "price")
	return cmd
}

func priceListCmd() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List price quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPrices(ctx, actor(), requestID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id")
	return cmd
}

func priceDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a price quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAdminPrice(ctx, actor(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "price id")
	return cmd
}

func chatCmd() *cobra.Command {
	chat := &cobra.Command{Use: "chat", Short: "Moderated request chat"}
	chat.AddCommand(chatSendCmd())
	chat.AddCommand(chatListCmd())
	chat.AddCommand(chatApproveCmd())
	chat.AddCommand(chatDeleteCmd())
	return chat
}

func chatSendCmd() *cobra.Command {
	var requestID, body string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message on a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SendMessage(ctx, actor(), requestID, body)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	return cmd
}

func chatListCmd() *cobra.Command {
	var requestID string
	var pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMessages(ctx, actor(), engine.MessageQuery{
					RequestID:   requestID,
					PendingOnly: pending,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "request id")
	cmd.Flags().BoolVar(&pending, "pending", false, "held messages only (admin)")
	return cmd
}

func chatApproveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a held message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.ApproveMessage(ctx, actor(), id)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "message id")
	return cmd
}

func chatDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteMessage(ctx, actor(), id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "message id")
	return cmd
}

func questionCmd() *cobra.Command {
	q := &cobra.Command{Use: "question", Short: "Shared Q&A board"}
	q.AddCommand(questionAskCmd())
	q.AddCommand(questionListCmd())
	q.AddCommand(questionAnswerCmd())
	return q
}

func questionAskCmd() *cobra.Command {
	var title, body, category string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a question",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AskQuestion(ctx, actor(), engine.QuestionOptions{
					Title:    title,
					Body:     body,
					Category: category,
				})
				if err != nil {
					return err
				}
				return printJSON(q)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "question title")
	cmd.Flags().StringVar(&body, "body", "", "question body")
	cmd.Flags().StringVar(&category, "category", "general", "question category")
	return cmd
}

func questionListCmd() *cobra.Command {
	var status, category, search string
	var mine bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListQuestions(ctx, actor(), engine.QuestionQuery{
					Status:   status,
					Category: category,
					Search:   search,
					Mine:     mine,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&search, "search", "", "search title and body")
	cmd.Flags().BoolVar(&mine, "mine", false, "only my questions")
	return cmd
}

func questionAnswerCmd() *cobra.Command {
	var id, answer string
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Answer a pending question",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || answer == "" {
				return fmt.Errorf("--id and --answer required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AnswerQuestion(ctx, actor(), id, answer)
				if err != nil {
					return err
				}
				return printJSON(q)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "question id")
	cmd.Flags().StringVar(&answer, "answer", "", "answer text")
	return cmd
}

func notificationCmd() *cobra.Command {
	n := &cobra.Command{Use: "notification", Short: "Account notifications"}
	n.AddCommand(notificationListCmd())
	n.AddCommand(notificationReadCmd())
	return n
}

func notificationListCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the actor's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListNotifications(ctx, actor(), unread)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "unread only")
	return cmd
}

func notificationReadCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Mark a notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.MarkNotificationRead(ctx, actor(), id)
				if err != nil {
					return err
				}
				return printJSON(n)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "notification id")
	return cmd
}

func settingsCmd() *cobra.Command {
	s := &cobra.Command{Use: "settings", Short: "Marketplace settings"}
	s.AddCommand(settingsShowCmd())
	s.AddCommand(settingsInitCmd())
	s.AddCommand(settingsImportCmd())
	s.AddCommand(settingsExportCmd())
	s.AddCommand(settingsValidateCmd())
	return s
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the live settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSON(e.Settings(ctx))
			})
		},
	}
}

func settingsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default essaybid.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func settingsImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import settings from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.UpdateSettings(ctx, actor(), cfg)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "settings YAML path (defaults to essaybid.yml)")
	return cmd
}

func settingsValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a settings YAML file without importing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			if _, err := config.FromFile(file); err != nil {
				return err
			}
			fmt.Println(file, "is valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "settings YAML path (defaults to essaybid.yml)")
	return cmd
}

func settingsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the live settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := r.GetSettings(ctx)
				if err != nil {
					return err
				}
				return printJSON(cfg)
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: requests, bids, chat, answers and account changes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var limit int
	var evtType, entityKind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, repo.EventFilters{
					Type:       evtType,
					EntityKind: entityKind,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + "/" + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "filter by entity kind")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, conn, err := app.Bootstrap(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("ESSAYBID_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Essay Bid API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id/X-Actor-Role without auth (dev only)")
	return cmd
}
