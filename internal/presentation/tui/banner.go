// Package tui renders the terminal output of the relaykit binary.
package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`           _             _    _ _   `, "#818cf8"},
	{`  _ __ ___| | __ _ _   _| | _(_) |_ `, "#a78bfa"},
	{` | '__/ _ \ |/ _' | | | | |/ / | __|`, "#c084fc"},
	{` | | |  __/ | (_| | |_| |   <| | |_ `, "#e879f9"},
	{` |_|  \___|_|\__,_|\__, |_|\_\_|\__|`, "#f472b6"},
	{`                   |___/            `, "#fb7185"},
}

// ServeInfo is printed under the banner when the server starts.
type ServeInfo struct {
	Version string
	Addr    string
	Mode    string
	UI      string
	Store   string
}

// PrintBanner writes the logo and the serve summary to w, colored for the
// terminal profile of out.
func PrintBanner(w io.Writer, out *termenv.Output, info ServeInfo) {
	p := out.Profile
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)

	key := func(s string) termenv.Style {
		return out.String(fmt.Sprintf("  %-8s", s)).Foreground(p.Color("#6b7280"))
	}
	fmt.Fprintf(w, "%s %s\n", key("version"), info.Version)
	fmt.Fprintf(w, "%s http://%s\n", key("listen"), info.Addr)
	fmt.Fprintf(w, "%s %s\n", key("mode"), info.Mode)
	fmt.Fprintf(w, "%s %s\n", key("ui"), out.String(info.UI).Underline())
	fmt.Fprintf(w, "%s %s\n", key("presets"), info.Store)
	fmt.Fprintln(w)
}
