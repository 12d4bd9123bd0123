package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"watchlist-compare/bot"
	"watchlist-compare/logger"
	"watchlist-compare/models"
	"watchlist-compare/progress"
	"watchlist-compare/server"
	"watchlist-compare/sheets"
)

const shutdownWait = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the streaming comparison endpoint over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.cfg.Server, a.coordinator, a.registry, a.log, debug)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func compareCommand() *cobra.Command {
	var spreadsheet string

	cmd := &cobra.Command{
		Use:   "compare <username> <username> [username...]",
		Short: "Compare watchlists and print the common films",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if spreadsheet == "" {
				spreadsheet = a.cfg.Sheets.SpreadsheetURL
			}

			out := cmd.OutOrStdout()
			terminal, err := a.coordinator.Compare(cmd.Context(), args, progress.SinkFunc(func(e progress.Event) {
				printFrame(out, e)
			}))
			if err != nil {
				return err
			}
			if terminal.Type != progress.EventResult {
				return errors.New(terminal.Message)
			}

			fmt.Fprintf(out, "\n%d films in common:\n", len(terminal.Films))
			for i, f := range terminal.Films {
				fmt.Fprintf(out, "%3d. %s  %s\n", i+1, f.Title, f.Link)
			}

			if spreadsheet == "" || len(terminal.Films) == 0 {
				return nil
			}
			return exportFilms(cmd.Context(), a, spreadsheet, args, terminal.Films, out)
		},
	}
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Google Sheets URL to write the result to")
	return cmd
}

// printFrame writes the line-protocol rendering of a progress event.
// Terminal events are reported by the caller.
func printFrame(w io.Writer, e progress.Event) {
	if e.Terminal() {
		return
	}
	frame, err := progress.Frame(e)
	if err != nil {
		return
	}
	fmt.Fprintln(w, frame)
}

func exportFilms(ctx context.Context, a *app, spreadsheetURL string, usernames []string, films []models.Film, out io.Writer) error {
	writer, err := newSheetsWriter(ctx, a, spreadsheetURL)
	if err != nil {
		return err
	}
	name := sheets.SheetNameFor(usernames, time.Now().UTC())
	_, sheetID, err := writer.CreateSheetAndWriteFilms(ctx, name, films, usernames)
	if err != nil {
		return fmt.Errorf("failed to write to Google Sheets: %w", err)
	}
	fmt.Fprintf(out, "\nWrote %d films to %s\n", len(films), writer.SheetURL(sheetID))
	return nil
}

func newSheetsWriter(ctx context.Context, a *app, spreadsheetURL string) (*sheets.Writer, error) {
	id := sheets.ExtractSpreadsheetID(spreadsheetURL)
	if id == "" {
		return nil, fmt.Errorf("could not extract spreadsheet ID from %q", spreadsheetURL)
	}
	return sheets.NewWriter(ctx, id, a.cfg.Sheets.CredentialsPath, a.log)
}

func botCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Telegram.Token == "" {
				return errors.New("telegram token is not set (WATCHLIST_TG_TOKEN)")
			}
			api, err := tgbotapi.NewBotAPI(a.cfg.Telegram.Token)
			if err != nil {
				return fmt.Errorf("failed to initialize bot: %w", err)
			}
			a.log.Info("Authorized on Telegram", logger.String("account", api.Self.UserName))

			b := bot.NewBot(api, a.coordinator, a.cfg.Telegram.AllowedUsers, a.log)
			if a.db != nil {
				b.WithHistory(a.db)
			}
			if url := a.cfg.Sheets.SpreadsheetURL; url != "" {
				writer, err := newSheetsWriter(cmd.Context(), a, url)
				if err != nil {
					a.log.Warn("Google Sheets export disabled", logger.Error(err))
				} else {
					b.WithExporter(writer)
				}
			}

			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			updates := api.GetUpdatesChan(u)
			defer api.StopReceivingUpdates()

			a.log.Info("Bot is running")
			b.Run(cmd.Context(), updates)
			return nil
		},
	}
}

func historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent comparisons",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.db == nil {
				return errors.New("history requires database.url (DATABASE_URL)")
			}
			records, err := a.db.RecentComparisons(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No comparisons yet.")
				return nil
			}
			for _, r := range records {
				outcome := fmt.Sprintf("%d in common", r.ResultCount)
				if r.Status != models.ComparisonDone {
					outcome = "failed: " + r.Message
				}
				fmt.Fprintf(out, "%s  %s  %s\n", r.FinishedAt.Local().Format(time.DateTime), strings.Join(r.Usernames, ", "), outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of comparisons to show")
	return cmd
}
