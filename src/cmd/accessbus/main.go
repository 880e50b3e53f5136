// Command accessbus is a terminal client for the accessbus API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"accessbus/src/client"
	"accessbus/src/config"
	"accessbus/src/types"
	"accessbus/src/workflow"

	"github.com/covalenthq/lumberjack"
	"github.com/gookit/goutil/dump"
)

type app struct {
	cfg   *config.ClientConfig
	api   *client.Client
	deps  workflow.Deps
	ui    console
	debug bool
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":        {"login <email> <password>", runLogin},
	"signup":       {"signup [--disability] [--document file.pdf] <name> <email> <password>", runSignup},
	"logout":       {"logout", runLogout},
	"stops":        {"stops <text>", runStops},
	"timetables":   {"timetables <origin> [destination]", runTimetables},
	"book":         {"book [--time 15:04] [--watch] <origin> <destination> <vehicle> [route]", runBook},
	"status":       {"status", runStatus},
	"cancel":       {"cancel", runCancel},
	"pass":         {"pass [file.jpeg]", runPass},
	"nearby":       {"nearby", runNearby},
	"volunteer":    {"volunteer <reservation id>", runVolunteer},
	"unvolunteer":  {"unvolunteer <reservation id>", runUnvolunteer},
	"profile":      {"profile", runProfile},
	"edit-profile": {"edit-profile [--name n] [--email e] [--requirement r]... [--clear-requirements]", runEditProfile},
	"password":     {"password <old> <new>", runPassword},
	"upload":       {"upload <file.pdf>", runUpload},
	"document":     {"document <out.pdf>", runDocument},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: accessbus [--config file] [--lat n --lon n] [--verbose] [--debug] <command> [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func initLogger(cfg *config.ClientConfig, verbose bool) *log.Logger {
	if verbose || cfg.LogFile == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		log.Printf("Error creating log directory: %s\n", err.Error())
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}, "", log.LstdFlags)
}

func main() {
	fs := flag.NewFlagSet("accessbus", flag.ExitOnError)
	fs.Usage = usage
	cfgFile := fs.String("config", "", "config file")
	verbose := fs.Bool("verbose", false, "log to stderr")
	debug := fs.Bool("debug", false, "dump responses")
	lat := fs.Float64("lat", math.NaN(), "latitude")
	lon := fs.Float64("lon", math.NaN(), "longitude")
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClientConfig(*cfgFile)
	if err != nil {
		log.Fatalf("Error loading config: %s\n", err.Error())
	}
	logger := initLogger(cfg, *verbose)

	con := console{out: os.Stdout, err: os.Stderr}
	api := client.New(cfg.Server,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		client.WithTokenStore(&client.FileStore{Path: cfg.TokenFile}),
		client.WithNavigator(con),
		client.WithLogger(logger),
	)
	if _, err := api.Restore(); err != nil {
		logger.Printf("Error restoring session: %s\n", err.Error())
	}

	a := &app{
		cfg: cfg,
		api: api,
		deps: workflow.Deps{
			Navigator: con,
			Alerter:   con,
			Speaker:   con,
			Location:  fixedLocation{lat: *lat, lon: *lon},
			Logger:    logger,
		},
		ui:    con,
		debug: *debug,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		logger.Printf("Error running %s: %s\n", fs.Arg(0), err.Error())
		stop()
		os.Exit(1)
	}
}

func (a *app) dump(v ...any) {
	if a.debug {
		dump.P(v...)
	}
}

var errUsage = errors.New("invalid arguments")

func needArgs(args []string, n int) error {
	if len(args) < n {
		return errUsage
	}
	return nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid reservation id %q", s)
	}
	return uint(id), nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 2); err != nil {
		return err
	}
	role, err := workflow.NewAuthFlow(a.api, a.deps).Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.ui.out, "Signed in as %s\n", role)
	return nil
}

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	disability := fs.Bool("disability", false, "register as a rider with a disability")
	document := fs.String("document", "", "proof of disability")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs.Args(), 3); err != nil {
		return err
	}
	form := workflow.SignupForm{
		Name:          fs.Arg(0),
		Email:         fs.Arg(1),
		Password:      fs.Arg(2),
		HasDisability: *disability,
	}
	if *document != "" {
		content, err := os.ReadFile(*document)
		if err != nil {
			return err
		}
		id, err := a.api.UploadPDFTemp(ctx, filepath.Base(*document), content)
		if err != nil {
			a.ui.Alert(workflow.AlertMessage(err))
			return err
		}
		form.DocumentID = id
	}
	flow := workflow.NewAuthFlow(a.api, a.deps)
	if err := flow.Signup(ctx, form); err != nil {
		return err
	}
	if form.DocumentID == "" {
		return nil
	}
	// the upload can only be linked once signed in
	if _, err := flow.Login(ctx, form.Email, form.Password); err != nil {
		return err
	}
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	workflow.NewAuthFlow(a.api, a.deps).Logout(ctx)
	return nil
}

func runStops(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	stops := workflow.NewSearchFlow(a.api, a.deps, a.cfg.AutocompleteLimit).Autocomplete(ctx, args[0])
	a.dump(stops)
	for _, s := range stops {
		fmt.Fprintf(a.ui.out, "%s  %s  %s\n", s.ID, s.Name, s.Street)
	}
	return nil
}

func runTimetables(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	dest := ""
	if len(args) > 1 {
		dest = args[1]
	}
	rows, err := workflow.NewSearchFlow(a.api, a.deps, a.cfg.AutocompleteLimit).Timetables(ctx, args[0], dest)
	if err != nil {
		return err
	}
	a.dump(rows)
	now := time.Now()
	for _, t := range rows {
		fmt.Fprintf(a.ui.out, "%s %s bus %s at %s (%d min), %d seats, %s\n",
			t.RouteID, t.RouteName, t.VehicleID, t.ArrivalTime, workflow.WaitMinutes(t.ArrivalTime, now), t.SeatsEmpty, workflow.RampLabel(t.RampType))
	}
	return nil
}

func runBook(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	at := fs.String("time", "", "departure time")
	watch := fs.Bool("watch", false, "follow the booking until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs.Args(), 3); err != nil {
		return err
	}
	sel := workflow.Selection{
		OriginID:      fs.Arg(0),
		DestinationID: fs.Arg(1),
		Timetable:     types.Timetable{VehicleID: fs.Arg(2), RouteID: fs.Arg(3), ArrivalTime: *at},
	}

	flow, err := workflow.NewReservationFlow(a.api, a.deps, a.cfg.PollInterval)
	if err != nil {
		return err
	}
	defer flow.Shutdown()
	if err := flow.Confirm(ctx, sel); err != nil {
		return err
	}
	a.printReservation(flow.Reservation())
	if !*watch {
		return nil
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flow.Close()
			return nil
		case <-ticker.C:
			if flow.State() == workflow.Cancelled {
				fmt.Fprintln(a.ui.out, "Booking is no longer active.")
				return nil
			}
			a.printReservation(flow.Reservation())
		}
	}
}

func (a *app) printReservation(r *types.ReservationView) {
	if r == nil {
		return
	}
	a.dump(r)
	fmt.Fprintf(a.ui.out, "#%d %s -> %s bus %s in %d min, %d seats, %d volunteers, %s\n",
		r.ReservationID, r.OriginID, r.DestinationID, r.VehicleID, r.ArrivalMin, r.SeatsEmpty, r.VolunteerCount, workflow.RampLabel(r.RampType))
}

func runStatus(ctx context.Context, a *app, args []string) error {
	r, err := a.api.SeeReservation(ctx)
	if client.IsNotFound(err) {
		fmt.Fprintln(a.ui.out, "No booking.")
		return nil
	}
	if err != nil {
		a.ui.Alert(workflow.AlertMessage(err))
		return err
	}
	a.printReservation(r)
	return nil
}

func runCancel(ctx context.Context, a *app, args []string) error {
	deleted, err := a.api.DeleteReservation(ctx)
	if err != nil && !client.IsNotFound(err) {
		a.ui.Alert(workflow.AlertMessage(err))
		return err
	}
	if deleted {
		a.ui.Speak("Booking cancelled.")
	} else {
		fmt.Fprintln(a.ui.out, "No booking.")
	}
	return nil
}

func runPass(ctx context.Context, a *app, args []string) error {
	r, err := a.api.SeeReservation(ctx)
	if err != nil {
		a.ui.Alert(workflow.AlertMessage(err))
		return err
	}
	file := fmt.Sprintf("reservation-%d.jpeg", r.ReservationID)
	if len(args) > 0 {
		file = args[0]
	}
	if err := savePass(file, r.ReservationID, r.VehicleID); err != nil {
		return err
	}
	fmt.Fprintf(a.ui.out, "Boarding pass saved to %s\n", file)
	return nil
}

func runNearby(ctx context.Context, a *app, args []string) error {
	res, err := workflow.NewVolunteerFlow(a.api, a.deps, a.cfg.NearbyLimit).ListNearby(ctx)
	if err != nil {
		return err
	}
	a.dump(res)
	printNearby(a.ui.out, res)
	return nil
}

func runVolunteer(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	flow := workflow.NewVolunteerFlow(a.api, a.deps, a.cfg.NearbyLimit)
	if err := flow.Attach(ctx, id); err != nil {
		return err
	}
	v := flow.View()
	fmt.Fprintf(a.ui.out, "%s %d volunteers on #%d\n", v.ConfirmLabel, v.VolunteerCount, v.ReservationID)
	return nil
}

func runUnvolunteer(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return workflow.NewVolunteerFlow(a.api, a.deps, a.cfg.NearbyLimit).Detach(ctx, id)
}

func printProfile(a *app, info *types.UserInfo) {
	a.dump(info)
	fmt.Fprintf(a.ui.out, "%s <%s> %s\n", info.Name, info.Email, info.Role)
	for _, r := range info.AccessibilityRequirements {
		fmt.Fprintf(a.ui.out, "  - %s\n", r)
	}
	if info.HasDocument {
		fmt.Fprintln(a.ui.out, "Document on file")
	}
}

func runProfile(ctx context.Context, a *app, args []string) error {
	info, err := workflow.NewAccountFlow(a.api, a.deps).Profile(ctx)
	if err != nil {
		return err
	}
	printProfile(a, info)
	return nil
}

type listFlag []string

func (l *listFlag) String() string     { return fmt.Sprint(*l) }
func (l *listFlag) Set(s string) error { *l = append(*l, s); return nil }

func runEditProfile(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("edit-profile", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	clearReqs := fs.Bool("clear-requirements", false, "remove every accessibility requirement")
	var reqs listFlag
	fs.Var(&reqs, "requirement", "accessibility requirement, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var body types.EditProfileRequestBody
	if *name != "" {
		body.Name = name
	}
	if *email != "" {
		body.Email = email
	}
	if len(reqs) > 0 || *clearReqs {
		list := []string(reqs)
		if list == nil {
			list = []string{}
		}
		body.AccessibilityRequirements = &list
	}
	info, err := workflow.NewAccountFlow(a.api, a.deps).EditProfile(ctx, body)
	if err != nil {
		return err
	}
	printProfile(a, info)
	return nil
}

func runPassword(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 2); err != nil {
		return err
	}
	return workflow.NewAccountFlow(a.api, a.deps).ChangePassword(ctx, args[0], args[1])
}

func runUpload(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	id, err := workflow.NewAccountFlow(a.api, a.deps).UploadDocument(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.ui.out, "Document %s\n", id)
	return nil
}

func runDocument(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1); err != nil {
		return err
	}
	f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	n, err := workflow.NewAccountFlow(a.api, a.deps).ViewDocument(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.ui.out, "Saved %d bytes to %s\n", n, args[0])
	return nil
}
