package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"novelassist/internal/crypto"
	"novelassist/internal/devserver"
	"novelassist/internal/models"
	"novelassist/internal/services/novel"
	"novelassist/internal/services/user"
	"novelassist/internal/services/visualization"
	"novelassist/internal/session"
)

func (c *cli) loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptIfEmpty(cmd, &username, "Username"); err != nil {
				return err
			}
			if err := promptIfEmpty(cmd, &password, "Password"); err != nil {
				return err
			}

			sess, err := c.app.store.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	var forgetKey bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.store.Logout(cmd.Context()); err != nil {
				return err
			}
			if forgetKey && crypto.IsKeyStored() {
				if err := crypto.DeleteKey(); err != nil {
					return fmt.Errorf("failed to remove the session encryption key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session encryption key removed from the keychain")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&forgetKey, "forget-key", false, "also remove the session encryption key from the keychain")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptIfEmpty(cmd, &password, "Password"); err != nil {
				return err
			}
			resp, err := c.app.store.Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.print(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created, run 'novelassist login' to sign in\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := c.app.store.CurrentUser()
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if c.asJSON {
				return c.print(cmd, sess)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Username: %s\n", sess.Username)
			if sess.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", sess.Email)
			}
			fmt.Fprintf(out, "Roles: %s\n", strings.Join(sess.Roles, ", "))
			if exp, ok := sess.TokenExpiry(); ok {
				fmt.Fprintf(out, "Token expires: %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token with the stored refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.store.RefreshToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Access token refreshed")
			return nil
		},
	}
}

func (c *cli) novelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "novels",
		Short: "List your novels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.store.FetchNovels(cmd.Context()); err != nil {
				return err
			}
			novels := c.app.store.State().Novels
			if c.asJSON {
				return c.print(cmd, novels)
			}
			if len(novels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No novels found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tSTATUS\tCHAPTERS\tUPLOADED")
			for _, n := range novels {
				uploaded := ""
				if t, ok := n.CreatedAt(); ok {
					uploaded = t.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					n.ID(), n.Title(), n.Author(), n.Status(), n.ChapterCount(), uploaded)
			}
			return w.Flush()
		},
	}
}

func (c *cli) novelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "novel",
		Short: "Inspect and manage one novel",
	}

	sub := func(use, short string, fetch func(cmd *cobra.Command, id string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [id]",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := fetch(cmd, args[0])
				if err != nil {
					return err
				}
				if line, ok := v.(string); ok {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					return nil
				}
				return c.print(cmd, v)
			},
		}
	}

	cmd.AddCommand(
		sub("show", "Show a novel", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.store.FetchNovelDetail(cmd.Context(), id)
		}),
		sub("status", "Show the processing status", func(cmd *cobra.Command, id string) (any, error) {
			report, err := c.app.novelService.Status(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			if c.asJSON {
				return report, nil
			}
			status := report.ProcessingStatus()
			line := fmt.Sprintf("%s (%d%%)", status, status.Progress())
			if report.TotalChapters > 0 {
				line += fmt.Sprintf(", %d/%d chapters", report.ProcessedChapters, report.TotalChapters)
			}
			if report.Error != "" {
				line += ": " + report.Error
			}
			return line, nil
		}),
		sub("summary", "Show the novel summary", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.novelService.Summary(cmd.Context(), id)
		}),
		sub("chapters", "List the chapters", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.novelService.Chapters(cmd.Context(), id)
		}),
		sub("tags", "List the tags", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.novelService.Tags(cmd.Context(), id)
		}),
		sub("retag", "Regenerate the tags", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.novelService.RefreshTags(cmd.Context(), id)
		}),
		sub("overview", "Show the novel with its chapters and tags", func(cmd *cobra.Command, id string) (any, error) {
			return c.app.novelService.Overview(cmd.Context(), id)
		}),
		sub("delete", "Delete a novel", func(cmd *cobra.Command, id string) (any, error) {
			if err := c.app.novelService.Delete(cmd.Context(), id); err != nil {
				return nil, err
			}
			return "Deleted " + id, nil
		}),
	)
	return cmd
}

func (c *cli) uploadCmd() *cobra.Command {
	var file, sourceURL, title, author string
	var wait bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a novel from a file or URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := novel.UploadRequest{URL: sourceURL, Title: title, Author: author}

			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				req.File = f
				req.FileName = filepath.Base(file)
				if req.Title == "" {
					req.Title = strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
				}
			}

			id, err := c.app.UploadNovel(cmd.Context(), req, wait)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := c.app.store.State()
			fmt.Fprintf(out, "Novel %s: %s (%d%%)\n", id, st.ProcessingStatus, c.app.store.ProcessingPercentage())
			if wait && st.ProcessingStatus == models.StatusCompleted {
				fmt.Fprintf(out, "Title: %s, chapters: %d\n", st.CurrentNovel.Title(), st.CurrentNovel.ChapterCount())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "novel file to upload")
	cmd.Flags().StringVar(&sourceURL, "url", "", "URL to fetch the novel from")
	cmd.Flags().StringVarP(&title, "title", "t", "", "novel title")
	cmd.Flags().StringVarP(&author, "author", "a", "", "novel author")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until processing finishes")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	cmd.MarkFlagsOneRequired("file", "url")
	return cmd
}

func (c *cli) vizCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "viz [id] [view]",
		Short: "Show visualization data (" + strings.Join(visualization.Views, ", ") + ")",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			view := "all"
			if len(args) == 2 {
				view = args[1]
			}
			v, err := c.app.visualizationService.View(cmd.Context(), args[0], view)
			if err != nil {
				return err
			}
			return c.print(cmd, v)
		},
	}
}

func (c *cli) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your profile",
	}

	var update user.ProfileUpdate
	profile := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.userService.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			return c.print(cmd, v)
		},
	}
	profile.Flags().StringVar(&update.Email, "email", "", "email address")
	profile.Flags().StringVar(&update.Nickname, "nickname", "", "display name")
	profile.Flags().StringVar(&update.Bio, "bio", "", "short biography")

	var oldPassword, newPassword string
	password := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptIfEmpty(cmd, &oldPassword, "Current password"); err != nil {
				return err
			}
			if err := promptIfEmpty(cmd, &newPassword, "New password"); err != nil {
				return err
			}
			if _, err := c.app.userService.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	password.Flags().StringVar(&oldPassword, "old", "", "current password")
	password.Flags().StringVar(&newPassword, "new", "", "new password")

	avatar := &cobra.Command{
		Use:   "avatar [image]",
		Short: "Upload a new avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			v, err := c.app.userService.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return c.print(cmd, v)
		},
	}

	var confirm string
	remove := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptIfEmpty(cmd, &confirm, "Password"); err != nil {
				return err
			}
			if _, err := c.app.userService.DeleteAccount(cmd.Context(), confirm); err != nil {
				return err
			}
			if err := c.app.store.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
			return nil
		},
	}
	remove.Flags().StringVarP(&confirm, "password", "p", "", "password confirmation")

	cmd.AddCommand(
		c.printCmd("me", "Show your profile", func(cmd *cobra.Command) (any, error) {
			return c.app.userService.Me(cmd.Context())
		}),
		c.printCmd("stats", "Show your usage statistics", func(cmd *cobra.Command) (any, error) {
			return c.app.userService.Stats(cmd.Context())
		}),
		c.printCmd("novels", "List novels you uploaded", func(cmd *cobra.Command) (any, error) {
			return c.app.userService.Novels(cmd.Context())
		}),
		profile,
		password,
		avatar,
		remove,
	)
	return cmd
}

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration tools (admin role required)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			if !c.app.authService.IsAdmin(cmd.Context()) {
				return fmt.Errorf("the admin commands need a user with the %s role", session.RoleAdmin)
			}
			return nil
		},
	}

	var page, size int
	logs := &cobra.Command{
		Use:   "logs",
		Short: "Show the system log",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.adminService.Logs(cmd.Context(), page, size)
			if err != nil {
				return err
			}
			return c.print(cmd, v)
		},
	}
	logs.Flags().IntVar(&page, "page", 0, "page number, from 0")
	logs.Flags().IntVar(&size, "size", 10, "page size")

	status := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [user-id]",
			Short: strings.ToUpper(use[:1]) + use[1:] + " a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := c.app.adminService.UpdateUserStatus(cmd.Context(), args[0], enabled)
				if err != nil {
					return err
				}
				return c.print(cmd, v)
			},
		}
	}

	cmd.AddCommand(
		c.printCmd("dashboard", "Show dashboard figures", func(cmd *cobra.Command) (any, error) {
			return c.app.adminService.Dashboard(cmd.Context())
		}),
		c.printCmd("users", "List users", func(cmd *cobra.Command) (any, error) {
			return c.app.adminService.Users(cmd.Context())
		}),
		c.printCmd("novels", "List every novel", func(cmd *cobra.Command) (any, error) {
			return c.app.adminService.Novels(cmd.Context())
		}),
		c.printCmd("clear-cache", "Clear the backend caches", func(cmd *cobra.Command) (any, error) {
			return c.app.adminService.ClearCache(cmd.Context())
		}),
		&cobra.Command{
			Use:   "user [user-id]",
			Short: "Show a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := c.app.adminService.User(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.print(cmd, v)
			},
		},
		&cobra.Command{
			Use:   "delete-user [user-id]",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.app.adminService.DeleteUser(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "delete-novel [novel-id]",
			Short: "Delete any user's novel",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.app.adminService.DeleteNovel(cmd.Context(), args[0])
			},
		},
		status("enable", true),
		status("disable", false),
		logs,
	)
	return cmd
}

func (c *cli) jobsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show recent uploads recorded on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := c.app.RecentJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No uploads recorded.")
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of jobs to show")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a local CORS proxy to the backend for front-end development",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := devserver.New(devserver.Options{
				Addr:    c.cfg.ServeAddr,
				Backend: c.cfg.APIURL,
				Origin:  c.cfg.CORSOrigin,
				Logger:  c.log.Named("devserver"),
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}

// printCmd builds a command without arguments that prints what fetch returns
func (c *cli) printCmd(use, short string, fetch func(cmd *cobra.Command) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := fetch(cmd)
			if err != nil {
				return err
			}
			return c.print(cmd, v)
		},
	}
}
