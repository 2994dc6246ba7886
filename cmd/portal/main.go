// Command portal is a terminal client for the patient portal document API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"patientportal/internal/config"
	"patientportal/internal/logger"
	"patientportal/internal/portal"
)

const usage = `usage: portal [-api URL] [-timeout DURATION] [-v] <command>

commands:
  list                      show all documents
  upload FILE               upload a PDF
  delete [-y] ID            delete a document (asks first unless -y)
  download [-o PATH] ID     save a document to PATH
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// session bundles what every command needs.
type session struct {
	client   *portal.Client
	ctrl     *portal.Controller
	uploader *portal.Uploader
	in       *bufio.Reader
	out      io.Writer
	errOut   io.Writer
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	cfg := config.Load().Portal

	fs := flag.NewFlagSet("portal", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { fmt.Fprint(errOut, usage) }
	apiURL := fs.String("api", cfg.APIURL, "document API base URL")
	timeout := fs.Duration("timeout", cfg.RequestTimeout, "per request timeout")
	verbose := fs.Bool("v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	log := logger.NewWriter(errOut, level)
	defer log.Sync()

	notes := portal.NewNotificationChannel(cfg.NotificationTTL, nil)
	notes.OnShow(func(n portal.Notification) { printNotification(out, n) })

	client := portal.NewClient(*apiURL, *timeout)
	ctrl := portal.NewController(client, notes, log)
	defer ctrl.Close()

	s := &session{
		client: client,
		ctrl:   ctrl,
		uploader: portal.NewUploader(ctrl, portal.AlertFunc(func(msg string) {
			color.New(color.FgYellow, color.Bold).Fprintln(errOut, msg)
		})),
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "list":
		err = s.list(ctx)
	case "upload":
		err = s.upload(ctx, rest)
	case "delete":
		err = s.delete(ctx, rest)
	case "download":
		err = s.download(ctx, rest)
	default:
		fmt.Fprintf(errOut, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	if err != nil {
		log.Debug("command_failed", zap.String("command", cmd), zap.Error(err))
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(errOut, ue.Error())
			return 2
		}
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func printNotification(w io.Writer, n portal.Notification) {
	var c *color.Color
	switch n.Type {
	case portal.NotifySuccess:
		c = color.New(color.FgGreen)
	case portal.NotifyError:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgCyan)
	}
	c.Fprintln(w, n.Message)
}

func (s *session) render() error {
	return portal.Render(s.out, portal.BuildView(s.ctrl.Snapshot(), s.client.DownloadURL))
}

func (s *session) list(ctx context.Context) error {
	if err := s.ctrl.Load(ctx); err != nil {
		return err
	}
	return s.render()
}

func (s *session) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("upload needs exactly one FILE")
	}
	f, err := portal.OpenFile(args[0])
	if err != nil {
		fmt.Fprintln(s.errOut, err)
		return err
	}
	// A failed load is reported but does not stop the upload.
	s.ctrl.Load(ctx)

	if err := s.uploader.Select(ctx, []portal.File{f}); err != nil {
		return err
	}
	return s.render()
}

func (s *session) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(s.errOut)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return usageError("delete [-y] ID")
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	if err := s.ctrl.Load(ctx); err != nil {
		return err
	}

	confirm := portal.ConfirmFunc(s.ask)
	if *yes {
		confirm = func(context.Context, string) (bool, error) { return true, nil }
	}
	attempted, err := portal.ConfirmDelete(ctx, confirm, s.ctrl, id)
	if err != nil {
		return err
	}
	if !attempted {
		fmt.Fprintln(s.out, "Cancelled.")
		return nil
	}
	return s.render()
}

func (s *session) download(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(s.errOut)
	outPath := fs.String("o", "", "output path (default: the document's filename)")
	if err := fs.Parse(args); err != nil {
		return usageError("download [-o PATH] ID")
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}

	path := *outPath
	if path == "" {
		path = fmt.Sprintf("document-%d.pdf", id)
		if err := s.ctrl.Load(ctx); err == nil {
			for _, d := range s.ctrl.Snapshot().Documents {
				if d.ID == id {
					path = filepath.Base(d.Filename)
					break
				}
			}
		}
	}

	// The body lands in a temp file beside path so an existing file survives a failed request.
	f, err := os.CreateTemp(filepath.Dir(path), ".portal-*")
	if err != nil {
		fmt.Fprintln(s.errOut, err)
		return err
	}
	n, err := s.client.Download(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(f.Name(), path)
	}
	if err != nil {
		os.Remove(f.Name())
		msg := portal.Detail(err)
		if msg == "" {
			msg = "Failed to download document"
		}
		printNotification(s.out, portal.Notification{Type: portal.NotifyError, Message: msg})
		return err
	}
	fmt.Fprintf(s.out, "Saved %s (%s)\n", path, portal.FormatSize(n))
	return nil
}

// ask prints prompt and reads a y/N answer.
func (s *session) ask(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(s.out, "%s [y/N] ", prompt)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := s.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError("expected exactly one document ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(fmt.Sprintf("invalid document ID %q", args[0]))
	}
	return id, nil
}

