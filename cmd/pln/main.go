package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"printline/internal/app"
	"printline/internal/config"
	"printline/internal/db"
	"printline/internal/domain"
	"printline/internal/engine"
	"printline/internal/migrate"
	"printline/internal/repo"
	"printline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pln",
	Short: "Printline CLI",
	Long: `Printline runs a garment print shop's floor: orders, production jobs,
design approvals, and payments, each driven by a strict lifecycle state
machine with role-based permission checks.

- Workspace: the .printline directory holds the database; shop config lives
  in the DB and is imported explicitly.
- Clients and orders: who you print for and what they asked for.
- Jobs: production steps (print, press, cut, sew, qc, iron, design) that flow
  pending -> in_progress -> completed, with on_hold as a parking state.
  Start and end times are stamped by the engine, never by hand.
- Designs: artwork goes new -> in_progress -> review -> finalized -> completed;
  a rejection needs written feedback, a hold resumes where it left off.
- Payments: pending until someone with payments.approve signs off; approved
  and rejected are final.
- Alerts: open dated work is classified overdue/critical/warning/upcoming
  against the configured thresholds ('pln alerts').
- Event log: every state change is recorded, view with 'pln log tail'.`,
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
	viper.SetEnvPrefix("PRINTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("shop", "", "shop id (overrides the single-shop default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("shop", rootCmd.PersistentFlags().Lookup("shop"))
}

func registerCommands() {
	rootCmd.AddCommand(shopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(designCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- shop ---

func shopCmd() *cobra.Command {
	shop := &cobra.Command{Use: "shop", Short: "Manage shops"}
	shop.AddCommand(shopInitCmd())
	shop.AddCommand(shopListCmd())
	shop.AddCommand(shopShowCmd())
	shop.AddCommand(shopConfigCmd())
	shop.AddCommand(shopUseCmd())
	return shop
}

func shopInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			s, err := e.InitShop(cmd.Context(), id, name, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(s)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "shop id")
	cmd.Flags().StringVar(&name, "name", "", "shop name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func shopListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shops",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListShops(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func shopShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetShop(ctx, e.Config.Shop.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func shopUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set the default shop for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID := strings.TrimSpace(args[0])
			if shopID == "" {
				return fmt.Errorf("shop id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "PRINTLINE_SHOP", shopID); err != nil {
				return err
			}
			fmt.Printf("Set PRINTLINE_SHOP=%s in %s/.env\n", shopID, workspace)
			return nil
		},
	}
}

func shopConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage shop config"}
	cfg.AddCommand(shopConfigShowCmd())
	cfg.AddCommand(shopConfigImportCmd())
	cfg.AddCommand(shopConfigGenerateCmd())
	return cfg
}

func shopConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show shop config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func shopConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import shop config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				cfg, err := e.ImportShopConfig(ctx, e.Config.Shop.ID, data, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func shopConfigGenerateCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a default config YAML to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(id))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "my-shop", "shop id to embed")
	return cmd
}

// --- status ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show shop status",
		Long:  "The scoreboard for your floor: job counts per status plus how many deadlines are overdue, critical, or in warning.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.Status(ctx, e.Config.Shop.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("Shop: %s\n", sum.ShopID)
				fmt.Println("Jobs:")
				for status, c := range sum.JobsByStatus {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Printf("Deadlines: %d overdue, %d critical, %d warning\n",
					sum.OverdueCount, sum.CriticalCount, sum.WarningCount)
				return nil
			})
		},
	}
}

// --- client ---

func clientCmd() *cobra.Command {
	client := &cobra.Command{Use: "client", Short: "Manage clients"}
	client.AddCommand(clientCreateCmd())
	client.AddCommand(clientListCmd())
	client.AddCommand(clientShowCmd())
	client.AddCommand(clientUpdateCmd())
	client.AddCommand(clientDeleteCmd())
	return client
}

func clientCreateCmd() *cobra.Command {
	var id, name, company, phone, email string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
					ID:      id,
					ShopID:  e.Config.Shop.ID,
					Name:    name,
					Company: company,
					Phone:   phone,
					Email:   email,
					Actor:   actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "client id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "client name")
	cmd.Flags().StringVar(&company, "company", "", "company")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().StringVar(&email, "email", "", "email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func clientListCmd() *cobra.Command {
	var search string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListClients(ctx, repo.ClientFilters{
					ShopID: e.Config.Shop.ID,
					Search: search,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Company", "Phone", "Email"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Company, c.Phone, c.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match on name or company")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func clientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetClient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func clientUpdateCmd() *cobra.Command {
	var name, company, phone, email string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.ClientUpdateOptions{ID: args[0], Actor: actor}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("company") {
					opts.Company = &company
				}
				if cmd.Flags().Changed("phone") {
					opts.Phone = &phone
				}
				if cmd.Flags().Changed("email") {
					opts.Email = &email
				}
				c, err := e.UpdateClient(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "client name")
	cmd.Flags().StringVar(&company, "company", "", "company")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().StringVar(&email, "email", "", "email")
	return cmd
}

func clientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client (refused while orders reference it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteClient(ctx, args[0], actor)
			})
		},
	}
}

// --- order ---

func orderCmd() *cobra.Command {
	order := &cobra.Command{Use: "order", Short: "Manage orders"}
	order.AddCommand(orderCreateCmd())
	order.AddCommand(orderListCmd())
	order.AddCommand(orderShowCmd())
	return order
}

func orderCreateCmd() *cobra.Command {
	var id, clientID, description, dueDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{
					ID:          id,
					ShopID:      e.Config.Shop.ID,
					ClientID:    clientID,
					Description: description,
					DueDate:     dueDate,
					Actor:       actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "order id (optional)")
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&description, "description", "", "what the client asked for")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func orderListCmd() *cobra.Command {
	var clientID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListOrders(ctx, repo.OrderFilters{
					ShopID:   e.Config.Shop.ID,
					ClientID: clientID,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Client", "Description", "Due"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.ClientID, o.Description, strDeref(o.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "filter by client id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

// --- job ---

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Manage production jobs",
		Long:  "Jobs are production steps on the floor. They flow pending -> in_progress -> completed; on_hold pauses work. The engine stamps start/end times and derives the duration.",
	}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobShowCmd())
	job.AddCommand(jobTransitionCmd())
	job.AddCommand(jobVerbCmd("start", "Start work on a job", domain.JobInProgress))
	job.AddCommand(jobVerbCmd("complete", "Mark a job completed", domain.JobCompleted))
	job.AddCommand(jobVerbCmd("hold", "Put a job on hold", domain.JobOnHold))
	job.AddCommand(jobVerbCmd("resume", "Resume a held job", domain.JobInProgress))
	return job
}

func jobCreateCmd() *cobra.Command {
	var id, orderID, jobType, dueDate string
	var priority int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.CreateJob(ctx, engine.JobCreateOptions{
					ID:       id,
					OrderID:  orderID,
					Type:     jobType,
					Priority: priority,
					DueDate:  dueDate,
					Actor:    actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "job id (optional)")
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().StringVar(&jobType, "type", "print", "job type (design, print, press, cut, sew, qc, iron)")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority (lower is higher)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (defaults to the order's)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func jobListCmd() *cobra.Command {
	var orderID, status, jobType string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListJobs(ctx, repo.JobFilters{
					ShopID:  e.Config.Shop.ID,
					OrderID: orderID,
					Status:  status,
					Type:    jobType,
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Order", "Type", "Status", "Due", "Progress"})
				for _, j := range items {
					tw.AppendRow(table.Row{j.ID, j.OrderID, j.Type, j.Status, strDeref(j.DueDate), j.Progress})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "filter by order id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&jobType, "type", "", "filter by job type")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func jobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.Repo.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobTransitionCmd() *cobra.Command {
	var target, expect string
	cmd := &cobra.Command{
		Use:   "transition <id>",
		Short: "Move a job to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.TransitionJob(ctx, engine.TransitionOptions{
					ID:             args[0],
					Target:         target,
					ExpectedStatus: expect,
					Actor:          actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target status (in_progress, completed, on_hold)")
	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the current status matches")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// jobVerbCmd is shorthand for the common transitions.
func jobVerbCmd(use, short, target string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				j, err := e.TransitionJob(ctx, engine.TransitionOptions{
					ID:     args[0],
					Target: target,
					Actor:  actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

// --- design ---

func designCmd() *cobra.Command {
	design := &cobra.Command{
		Use:   "design",
		Short: "Manage design projects",
		Long:  "Artwork flows new -> in_progress -> review -> finalized -> completed. Rejection requires feedback; a hold remembers where it came from and resumes there.",
	}
	design.AddCommand(designCreateCmd())
	design.AddCommand(designListCmd())
	design.AddCommand(designShowCmd())
	design.AddCommand(designTransitionCmd())
	design.AddCommand(designVerbCmd("start", "Start work on a design", domain.DesignInProgress))
	design.AddCommand(designVerbCmd("submit", "Submit a design for review", domain.DesignReview))
	design.AddCommand(designVerbCmd("approve", "Finalize a design under review", domain.DesignFinalized))
	design.AddCommand(designRejectCmd())
	design.AddCommand(designVerbCmd("reopen", "Send a rejected design back to work", domain.DesignInProgress))
	design.AddCommand(designVerbCmd("complete", "Mark a finalized design completed", domain.DesignCompleted))
	design.AddCommand(designVerbCmd("hold", "Put a design on hold", domain.DesignOnHold))
	design.AddCommand(designResumeCmd())
	return design
}

func designCreateCmd() *cobra.Command {
	var id, orderID, title, dueDate string
	var priority int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a design project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				d, err := e.CreateDesign(ctx, engine.DesignCreateOptions{
					ID:       id,
					OrderID:  orderID,
					Title:    title,
					Priority: priority,
					DueDate:  dueDate,
					Actor:    actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "design id (optional)")
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().StringVar(&title, "title", "", "design title")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority (lower is higher)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func designListCmd() *cobra.Command {
	var orderID, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List design projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListDesigns(ctx, repo.DesignFilters{
					ShopID:  e.Config.Shop.ID,
					OrderID: orderID,
					Status:  status,
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Order", "Title", "Status", "Due"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.OrderID, d.Title, d.Status, strDeref(d.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "filter by order id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func designShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a design project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.GetDesign(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func designTransitionCmd() *cobra.Command {
	var target, expect, feedback string
	cmd := &cobra.Command{
		Use:   "transition <id>",
		Short: "Move a design to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.TransitionOptions{
					ID:             args[0],
					Target:         target,
					ExpectedStatus: expect,
					Actor:          actor,
				}
				opts.Payload.Feedback = feedback
				d, err := e.TransitionDesign(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target status")
	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the current status matches")
	cmd.Flags().StringVar(&feedback, "feedback", "", "reviewer feedback (required for rejection)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func designVerbCmd(use, short, target string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				d, err := e.TransitionDesign(ctx, engine.TransitionOptions{
					ID:     args[0],
					Target: target,
					Actor:  actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func designRejectCmd() *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a design under review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.TransitionOptions{
					ID:     args[0],
					Target: domain.DesignRejected,
					Actor:  actor,
				}
				opts.Payload.Feedback = feedback
				d, err := e.TransitionDesign(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "why the design is rejected")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

// designResumeCmd resumes a held design into the status it was held from.
func designResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a held design where it left off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				existing, err := e.Repo.GetDesign(ctx, args[0])
				if err != nil {
					return err
				}
				if existing.HeldFrom == nil {
					return fmt.Errorf("design %s is not on hold", args[0])
				}
				d, err := e.TransitionDesign(ctx, engine.TransitionOptions{
					ID:     args[0],
					Target: *existing.HeldFrom,
					Actor:  actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

// --- payment ---

func paymentCmd() *cobra.Command {
	payment := &cobra.Command{Use: "payment", Short: "Manage payments"}
	payment.AddCommand(paymentCreateCmd())
	payment.AddCommand(paymentListCmd())
	payment.AddCommand(paymentApproveCmd())
	payment.AddCommand(paymentRejectCmd())
	return payment
}

func paymentCreateCmd() *cobra.Command {
	var id, orderID string
	var amountCents int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a pending payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				p, err := e.CreatePayment(ctx, engine.PaymentCreateOptions{
					ID:          id,
					OrderID:     orderID,
					AmountCents: amountCents,
					Actor:       actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "payment id (optional)")
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().Int64Var(&amountCents, "amount-cents", 0, "amount in cents")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("amount-cents")
	return cmd
}

func paymentListCmd() *cobra.Command {
	var orderID, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPayments(ctx, repo.PaymentFilters{
					ShopID:  e.Config.Shop.ID,
					OrderID: orderID,
					Status:  status,
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Order", "Amount", "Status", "Approved By"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.OrderID, fmt.Sprintf("%d.%02d", p.AmountCents/100, p.AmountCents%100), p.Status, strDeref(p.ApprovedBy)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "filter by order id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func paymentApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.TransitionOptions{
					ID:     args[0],
					Target: domain.PaymentApproved,
					Actor:  actor,
				}
				opts.Payload.ApproverID = actor.ID
				p, err := e.TransitionPayment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func paymentRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.TransitionOptions{
					ID:     args[0],
					Target: domain.PaymentRejected,
					Actor:  actor,
				}
				opts.Payload.Reason = reason
				p, err := e.TransitionPayment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the payment is rejected")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

// --- alerts ---

func alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List deadline alerts",
		Long:  "Classifies every open dated job and design against the configured thresholds: overdue, critical, warning, or upcoming, most urgent first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				alerts, err := e.DueAlerts(ctx, e.Config.Shop.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(alerts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Tier", "Kind", "ID", "Title", "Due", "Days"})
				for _, a := range alerts {
					tw.AppendRow(table.Row{a.Alert.Tier, a.Kind, a.ID, a.Title, a.DueDate, a.Alert.DaysRemaining})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// --- staff ---

func staffCmd() *cobra.Command {
	staff := &cobra.Command{Use: "staff", Short: "Manage staff"}
	staff.AddCommand(staffAddCmd())
	staff.AddCommand(staffListCmd())
	staff.AddCommand(staffAssignCmd())
	return staff
}

func staffAddCmd() *cobra.Command {
	var id, name, role, department string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				s, err := e.CreateStaff(ctx, engine.StaffCreateOptions{
					ID:         id,
					ShopID:     e.Config.Shop.ID,
					Name:       name,
					Role:       role,
					Department: department,
					Actor:      actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "staff id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&role, "role", "", "role id from config")
	cmd.Flags().StringVar(&department, "department", "", "department id from config")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func staffListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListStaff(ctx, e.Config.Shop.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Department"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Role, s.Department})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func staffAssignCmd() *cobra.Command {
	var role, department string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Change a staff member's role or department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.StaffUpdateOptions{ID: args[0], Actor: actor}
				if cmd.Flags().Changed("role") {
					opts.Role = &role
				}
				if cmd.Flags().Changed("department") {
					opts.Department = &department
				}
				s, err := e.UpdateStaff(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role id from config")
	cmd.Flags().StringVar(&department, "department", "", "department id from config")
	return cmd
}

// --- log ---

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Shop.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- keys ---

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Manage API keys"}
	keys.AddCommand(keysCreateCmd())
	keys.AddCommand(keysListCmd())
	keys.AddCommand(keysRevokeCmd())
	return keys
}

func keysCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				key, plaintext, err := e.CreateAPIKey(ctx, engine.APIKeyCreateOptions{
					ActorID: actorID,
					Name:    name,
					Actor:   actor,
				})
				if err != nil {
					return err
				}
				out := map[string]any{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      plaintext,
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "for", "", "staff id the key acts as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("for")
	return cmd
}

func keysListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				keys, err := e.ListAPIKeys(ctx, actorID, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "for", "", "filter by staff id")
	return cmd
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := cliActor(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteAPIKey(ctx, args[0], actor)
			})
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveShopAndConfig(cmd.Context(), workspace, viper.GetString("shop"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("PRINTLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyHeader,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("PRINTLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: logger})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e, logger)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info().Str("addr", addr).Str("base_path", basePath).
				Msg("serving Printline API (OpenAPI at /openapi.json, Swagger UI at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-legacy-actor-header", false, "accept X-Actor-Id without auth (local dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveShopAndConfig(ctx, workspace, viper.GetString("shop"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

// cliActor resolves the --actor-id flag to a staff record so permission
// checks see the persisted role and department.
func cliActor(ctx context.Context, e engine.Engine) (domain.Actor, error) {
	actorID := viper.GetString("actor-id")
	if s, err := e.Repo.GetStaff(ctx, actorID); err == nil {
		return s.Actor(), nil
	}
	return domain.Actor{ID: actorID}, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
