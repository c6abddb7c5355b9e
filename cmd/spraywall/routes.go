package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spraywall/spraywall/internal/api"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/editor"
	"github.com/spraywall/spraywall/internal/streaming"
	"github.com/spraywall/spraywall/pkg/core"
	pkgstreaming "github.com/spraywall/spraywall/pkg/streaming"
)

// scriptRect is the virtual image the add command clicks on. Marker
// positions given as fractions are scaled onto it.
var scriptRect = editor.Rect{Width: 1000, Height: 1000}

var markerColors = map[string]lipgloss.Color{
	"green":  lipgloss.Color("2"),
	"red":    lipgloss.Color("1"),
	"yellow": lipgloss.Color("3"),
	"blue":   lipgloss.Color("4"),
}

func newClient() *api.Client {
	cfg := config.GetAPIConfig()
	return api.New(cfg.ServerURL, cfg.Timeout)
}

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Manage routes on a running server",
	}
	cmd.AddCommand(newRoutesListCmd(), newRoutesGetCmd(), newRoutesAddCmd(), newRoutesDeleteCmd(), newRoutesWatchCmd())
	return cmd
}

func newRoutesListCmd() *cobra.Command {
	var (
		q      core.ListQuery
		minG   string
		maxG   string
		styles []string
		sortBy string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := q.Values()
			if minG != "" {
				v.Set("minGrade", minG)
			}
			if maxG != "" {
				v.Set("maxGrade", maxG)
			}
			for _, s := range styles {
				v.Add("style", s)
			}
			if sortBy != "" {
				v.Set("sort", sortBy)
			}
			parsed, err := core.ParseListQuery(v)
			if err != nil {
				return err
			}

			routes, err := newClient().ListRoutes(cmd.Context(), parsed)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), routes)
			}
			return printRoutes(cmd.OutOrStdout(), routes)
		},
	}
	f := cmd.Flags()
	f.StringVar(&minG, "min-grade", "", "lowest grade, e.g. V2")
	f.StringVar(&maxG, "max-grade", "", "highest grade")
	f.StringSliceVar(&styles, "style", nil, "style tag (repeatable): dynamic, slab, no match")
	f.StringVar(&q.Setter, "setter", "", "setter name")
	f.StringVarP(&q.Search, "search", "q", "", "name substring")
	f.StringVar(&sortBy, "sort", "", "newest, oldest, grade, -grade or name")
	f.IntVar(&q.Limit, "limit", 0, "page size")
	f.IntVar(&q.Offset, "offset", 0, "page offset")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newRoutesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one route as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newClient().GetRoute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), r)
		},
	}
}

func newRoutesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().DeleteRoute(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func newRoutesAddCmd() *cobra.Command {
	var (
		form    editor.Form
		grade   string
		styles  []string
		markers []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a route by replaying marker clicks through the editor",
		Long: `Create a route by replaying marker clicks through the editor.

Each --marker is TYPE@X,Y with X and Y fractions of the wall photo, e.g.
--marker start@0.2,0.85 --marker finish@0.6,0.05. Markers are clicked in
order, so clicking an existing marker again removes it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Image == "" {
				form.Image = config.GetString("editor.image")
			}
			sess := editor.NewSession(scriptRect, form.Image)
			sess.Form = form
			sess.Form.Grade = core.Grade(grade)
			for _, s := range styles {
				sess.Form.Style = append(sess.Form.Style, core.Style(s))
			}

			if err := replayMarkers(sess, markers); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			r, err := editor.NewSubmitter(newClient(), logger).Save(cmd.Context(), sess)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Route saved successfully: %s\n", r.ID)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.Name, "name", "", "route name")
	f.StringVar(&grade, "grade", string(core.Grades[0]), "grade V1-V17")
	f.StringVar(&form.Description, "description", "", "beta or notes")
	f.StringVar(&form.SetterName, "setter", "", "setter name")
	f.StringSliceVar(&styles, "style", nil, "style tag (repeatable)")
	f.StringVar(&form.Instagram, "instagram", "", "setter's instagram handle")
	f.StringVar(&form.Image, "image", "", "wall photo (defaults to editor.image)")
	f.StringArrayVar(&markers, "marker", nil, "marker as TYPE@X,Y (repeatable)")
	return cmd
}

func newRoutesWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print route changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			u, err := streaming.StreamURL(config.GetAPIConfig().ServerURL)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			sub, err := streaming.Subscribe(ctx, u, logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case env, ok := <-sub.Events():
					if !ok {
						return fmt.Errorf("route stream closed")
					}
					printEvent(out, env)
				}
			}
		},
	}
}

// replayMarkers taps each TYPE@X,Y spec onto the session.
func replayMarkers(sess *editor.Session, specs []string) error {
	for _, spec := range specs {
		m, err := parseMarkerSpec(spec)
		if err != nil {
			return err
		}
		sess.SelectType(m.Type)
		sess.Tap(scriptRect.Center(editor.Position{X: m.X, Y: m.Y}))
	}
	return nil
}

func parseMarkerSpec(spec string) (core.Marker, error) {
	typ, pos, ok := strings.Cut(spec, "@")
	if !ok {
		return core.Marker{}, fmt.Errorf("marker %q: want TYPE@X,Y", spec)
	}
	t, ok := core.ParseMarkerType(typ)
	if !ok {
		return core.Marker{}, fmt.Errorf("marker %q: unknown type %q", spec, typ)
	}
	xs, ys, ok := strings.Cut(pos, ",")
	if !ok {
		return core.Marker{}, fmt.Errorf("marker %q: want TYPE@X,Y", spec)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return core.Marker{}, fmt.Errorf("marker %q: bad x: %w", spec, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return core.Marker{}, fmt.Errorf("marker %q: bad y: %w", spec, err)
	}
	m := core.Marker{X: x, Y: y, Type: t}
	if !m.InBounds() {
		return core.Marker{}, fmt.Errorf("marker %q: position outside the image", spec)
	}
	return m, nil
}

func printRoutes(w io.Writer, routes []core.Route) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGRADE\tNAME\tSETTER\tSTYLE\tMARKERS")
	for _, r := range routes {
		styles := make([]string, 0, len(r.Style))
		for _, s := range r.Style {
			styles = append(styles, string(s))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Grade, r.Name, r.SetterName, strings.Join(styles, ","), markerSummary(r.Markers))
	}
	return tw.Flush()
}

// markerSummary counts markers per type, each count in its marker color.
func markerSummary(markers []core.Marker) string {
	parts := make([]string, 0, len(core.MarkerTypes))
	for _, t := range core.MarkerTypes {
		n := 0
		for _, m := range markers {
			if m.Type == t {
				n++
			}
		}
		if n == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(markerColors[t.Color()])
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", n, t)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func printEvent(w io.Writer, env pkgstreaming.Envelope) {
	switch env.Type {
	case pkgstreaming.TypeRouteCreated, pkgstreaming.TypeRouteUpdated:
		var p pkgstreaming.RoutePayload
		if err := env.Decode(&p); err != nil {
			fmt.Fprintln(w, err)
			return
		}
		fmt.Fprintf(w, "%s %s %s %q (%s)\n", env.Type, p.Route.ID, p.Route.Grade, p.Route.Name, markerSummary(p.Route.Markers))
	case pkgstreaming.TypeRouteDeleted:
		var p pkgstreaming.DeletedPayload
		if err := env.Decode(&p); err != nil {
			fmt.Fprintln(w, err)
			return
		}
		fmt.Fprintf(w, "%s %s\n", env.Type, p.ID)
	default:
		fmt.Fprintf(w, "%s %s\n", env.Type, env.Payload)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
