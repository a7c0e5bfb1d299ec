// cmd/tableglass/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/hgwr/TableGlass-sub001/internal/config"
	"github.com/hgwr/TableGlass-sub001/internal/db"
	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/history"
	"github.com/hgwr/TableGlass-sub001/internal/query"
	"github.com/hgwr/TableGlass-sub001/internal/workbench"
)

func main() {
	profileName := flag.String("profile", "", "Connection profile to use (defaults to the configured default)")
	dsn := flag.String("dsn", "", "Register a profile from a connection string under -profile, then connect to it")
	listProfiles := flag.Bool("profiles", false, "List configured profile names and exit")
	deleteProfile := flag.String("delete-profile", "", "Delete a profile and exit")
	readOnly := flag.Bool("readonly", false, "Reject statements that are not read-only")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *listProfiles {
		for _, name := range cfg.ListProfiles() {
			fmt.Println(name)
		}
		return
	}
	if *deleteProfile != "" {
		if err := cfg.DeleteProfile(*deleteProfile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("deleted profile %s\n", *deleteProfile)
		return
	}

	name := *profileName
	if *dsn != "" {
		if name == "" {
			fmt.Fprintln(os.Stderr, "-dsn requires -profile to name the new profile")
			os.Exit(1)
		}
		p, err := config.ParseDSN(name, *dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse DSN: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.AddProfile(p); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	if name == "" {
		name = cfg.DefaultProfile
	}
	profile, err := cfg.GetProfile(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	driver, err := connect(profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer driver.Close()

	persist, err := history.NewSQLitePersistence()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer persist.Close()

	store := history.NewStore(persist, cfg.HistoryLimit)
	defer store.Close()

	controller := workbench.NewController(driver, store)
	defer controller.Close()
	states := controller.Subscribe()

	browser := grid.NewController(driver, cfg.PageSize)
	defer browser.Close()
	gridStates := browser.Subscribe()

	gate := *readOnly || cfg.ReadOnly
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	fmt.Printf("connected to %s (%s)\n", profile.Name, profile.Type)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == `\q` {
			break
		}
		if handleCommand(line, driver, store, browser, gridStates) {
			continue
		}

		controller.SetBuffer(line)
		controller.RequestExecute(gate)
		render(awaitTerminal(controller, states))
	}
}

// handleCommand dispatches backslash commands; it reports whether the
// line was one.
func handleCommand(line string, driver db.Driver, store *history.Store, browser *grid.Controller, gridStates <-chan grid.State) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case `\tables`:
		listTables(driver)
	case `\browse`:
		browseTable(driver, browser, gridStates, strings.TrimSpace(arg))
	case `\more`:
		browser.LoadNextPage()
		renderGrid(awaitGridSettled(browser, gridStates))
	case `\history`:
		listHistory(store)
	default:
		return false
	}
	return true
}

func connect(profile *config.Profile) (db.Driver, error) {
	driver, err := db.NewDriver(db.DriverType(profile.Type))
	if err != nil {
		return nil, err
	}

	params := db.ConnectParams{
		Host:     profile.Host,
		Port:     profile.Port,
		User:     profile.User,
		Password: profile.Password,
		Database: profile.Database,
	}
	if profile.SSHHost != "" {
		params.SSHConfig = &db.SSHConfig{
			Host:     profile.SSHHost,
			Port:     profile.SSHPort,
			User:     profile.SSHUser,
			Password: profile.SSHPassword,
			KeyPath:  profile.SSHKeyPath,
		}
	}

	if err := driver.Connect(params); err != nil {
		return nil, err
	}
	return driver, nil
}

func listTables(driver db.Driver) {
	tables, err := driver.Tables(context.Background())
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, t := range tables {
		fmt.Println(t.String())
	}
}

func browseTable(driver db.Driver, browser *grid.Controller, gridStates <-chan grid.State, ref string) {
	if ref == "" {
		fmt.Println(`usage: \browse [schema.]table`)
		return
	}
	table := parseTableRef(ref)
	columns, err := driver.Columns(context.Background(), table)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	browser.LoadIfNeeded(table, columns)
	renderGrid(awaitGridSettled(browser, gridStates))
}

func listHistory(store *history.Store) {
	entries := store.Entries()
	start := 0
	if len(entries) > 20 {
		start = len(entries) - 20
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, e := range entries[start:] {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			e.ExecutedAt.Format("15:04:05"), e.Status, e.Preview(60))
	}
	w.Flush()
}

func parseTableRef(s string) query.TableRef {
	if schema, name, ok := strings.Cut(s, "."); ok {
		return query.TableRef{Schema: schema, Name: name}
	}
	return query.TableRef{Name: s}
}

// awaitTerminal drains state updates until the in-flight execution
// reaches a terminal phase. A gated or empty statement never leaves
// Idle, so that is terminal too.
func awaitTerminal(controller *workbench.Controller, states <-chan workbench.State) workbench.State {
	state := controller.Snapshot()
	for state.Phase == workbench.PhaseExecuting {
		<-states
		state = controller.Snapshot()
	}
	return state
}

// awaitGridSettled drains grid updates until no page fetch is in flight.
func awaitGridSettled(browser *grid.Controller, states <-chan grid.State) grid.State {
	state := browser.Snapshot()
	for state.IsLoadingPage {
		<-states
		state = browser.Snapshot()
	}
	return state
}

func render(state workbench.State) {
	switch state.Phase {
	case workbench.PhaseIdle:
		fmt.Println("(not executed)")
	case workbench.PhaseFailed:
		fmt.Printf("error: %s\n", state.ErrorMessage)
	case workbench.PhaseSucceeded:
		result := state.Result
		if !result.IsSelect {
			fmt.Printf("%d rows affected (%s)\n", result.AffectedRows, state.Elapsed)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		if len(result.Rows) > 0 {
			columns := result.Rows[0].Columns()
			fmt.Fprintln(w, strings.Join(columns, "\t"))
			for _, row := range result.Rows {
				cells := make([]string, len(columns))
				for i, name := range columns {
					v, _ := row.Value(name)
					cells[i] = v.Display()
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
		}
		w.Flush()
		fmt.Printf("%d rows (%s)\n", result.RowCount, state.Elapsed)
	}
}

func renderGrid(state grid.State) {
	if state.BannerError != "" {
		fmt.Printf("error: %s\n", state.BannerError)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	names := make([]string, len(state.Columns))
	for i, c := range state.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))
	for _, row := range state.Rows {
		cells := make([]string, len(names))
		for i, name := range names {
			cells[i] = row.Cells[name].Text
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	if state.HasMore {
		fmt.Printf("%d rows loaded, more available (\\more)\n", len(state.Rows))
	} else {
		fmt.Printf("%d rows loaded\n", len(state.Rows))
	}
}
