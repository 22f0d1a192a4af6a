package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vestigia/internal/adapters/apiclient"
	"vestigia/internal/config"
	"vestigia/internal/core/feed"
	"vestigia/internal/viewer"
)

type timelineOptions struct {
	*rootOptions
	server   string
	token    string
	email    string
	password string
	figure   string
	offset   bool
	poll     time.Duration
}

func newTimelineCommand(root *rootOptions) *cobra.Command {
	opts := &timelineOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Open an interactive timeline against a running server",
		Long: `Open an interactive timeline against a running server.

Commands:
  more               load the next page
  like N             like or unlike post N
  comment N text     comment on post N
  comments N         show the comments of post N
  uncomment cN       delete your comment cN
  likecomment cN     like or unlike comment cN
  quit               save the view and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "API base URL (default http://localhost:$APP_PORT)")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("VESTIGIA_TOKEN"), "session token")
	cmd.Flags().StringVar(&opts.email, "email", "", "sign in with this email")
	cmd.Flags().StringVar(&opts.password, "password", "", "password for --email")
	cmd.Flags().StringVar(&opts.figure, "figure", "", "show a single figure's timeline")
	cmd.Flags().BoolVar(&opts.offset, "offset", false, "page by offset instead of cursor")
	cmd.Flags().DurationVar(&opts.poll, "poll", 0, "polling interval (default $POLL_INTERVAL)")
	return cmd
}

func runTimeline(ctx context.Context, opts *timelineOptions, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := config.L()
	server := opts.server
	if server == "" {
		server = "http://localhost:" + opts.cfg.Port
	}
	poll := opts.poll
	if poll <= 0 {
		poll = opts.cfg.PollInterval
	}

	client := apiclient.New(server, apiclient.WithToken(opts.token), apiclient.WithLogger(logger))
	var userID string
	if opts.email != "" {
		sess, err := client.Login(ctx, opts.email, opts.password)
		if err != nil {
			return err
		}
		userID = sess.UserID
	}
	if client.Token() == "" {
		return errors.New("no session: pass --token or --email and --password")
	}
	if userID == "" {
		// the profile may be missing; the view then starts from the default date
		sess, err := client.Session(ctx)
		if err != nil {
			return err
		}
		userID = sess.UserID
	}

	mode := feed.Cursor
	if opts.offset {
		mode = feed.Offset
	}
	v, err := viewer.Open(ctx, client, viewer.Options{
		UserID:       userID,
		FigureID:     opts.figure,
		Mode:         mode,
		PollInterval: poll,
		Remote:       client,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer v.Close()

	if err := v.Render(out); err != nil {
		return err
	}
	return repl(ctx, v, in, out)
}

// repl reads one command per line until quit or end of input.
func repl(ctx context.Context, v *viewer.TimelineView, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		switch verb {
		case "quit", "exit", "q":
			return nil
		case "more":
			if _, err := v.LoadMore(ctx); err != nil {
				fmt.Fprintln(out, "could not load more posts")
			}
		case "like":
			if id, ok := postAt(v, rest, out); ok {
				_ = v.Like(ctx, id)
			}
		case "comment":
			n, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
			if id, ok := postAt(v, n, out); ok {
				_, _ = v.Comment(ctx, id, text)
			}
		case "comments":
			if id, ok := postAt(v, rest, out); ok {
				_, _ = v.Comments(ctx, id)
			}
		case "uncomment":
			if id, ok := commentAt(v, rest, out); ok {
				_ = v.DeleteComment(ctx, id)
			}
		case "likecomment":
			if id, ok := commentAt(v, rest, out); ok {
				_ = v.LikeComment(ctx, id)
			}
		default:
			fmt.Fprintf(out, "unknown command %q\n", verb)
			continue
		}
		if err := v.Render(out); err != nil {
			return err
		}
	}
}

// postAt resolves a 1-based post number from the rendered list.
func postAt(v *viewer.TimelineView, arg string, out io.Writer) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	posts := v.Posts()
	if err != nil || n < 1 || n > len(posts) {
		fmt.Fprintf(out, "no post %q\n", strings.TrimSpace(arg))
		return "", false
	}
	return posts[n-1].ID, true
}

// commentAt resolves a rendered comment number, written N or cN.
func commentAt(v *viewer.TimelineView, arg string, out io.Writer) (string, bool) {
	arg = strings.TrimSpace(arg)
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "c"))
	if err != nil {
		fmt.Fprintf(out, "no comment %q\n", arg)
		return "", false
	}
	c, ok := v.CommentAt(n)
	if !ok {
		fmt.Fprintf(out, "no comment %q\n", arg)
		return "", false
	}
	return c.ID, true
}
