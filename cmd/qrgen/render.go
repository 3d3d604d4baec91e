package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/platform/download"
)

type renderOptions struct {
	text     string
	multi    string
	size     int
	template int
	fg       string
	bg       string
	out      string
}

var renderOpts renderOptions

var renderCmd = &cobra.Command{
	Use:   "render [text]",
	Short: "Render a QR code to qr-<unix millis>.png",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := renderOpts
		if len(args) == 1 {
			opts.text = args[0]
		}

		ctrl, err := studio.NewController(render.NewCanvas(), nil)
		if err != nil {
			return err
		}
		if err := configure(ctrl, opts); err != nil {
			return err
		}

		saver := download.DirSaver{Dir: opts.out}
		name, err := ctrl.ExportImage(saver)
		if err != nil {
			return err
		}

		view := ctrl.View()
		log.Info().
			Str("mode", string(view.Status.Mode)).
			Int("size", view.Controls.Size).
			Str("fg", view.Controls.Foreground).
			Str("bg", view.Controls.Background).
			Msg("rendered")
		fmt.Fprintln(cmd.OutOrStdout(), saver.Path(name))
		return nil
	},
}

// configure replays the flags as studio events, in the order the page
// would emit them.
func configure(ctrl *studio.Controller, opts renderOptions) error {
	if err := ctrl.SetContentFromInputs(opts.text, opts.multi); err != nil {
		return err
	}
	if err := ctrl.SetSize(studio.Size(opts.size)); err != nil {
		return err
	}
	if err := ctrl.ApplyTemplate(opts.template); err != nil {
		return err
	}

	custom := []struct {
		ch    studio.Channel
		value string
	}{
		{studio.Foreground, opts.fg},
		{studio.Background, opts.bg},
	}
	for _, c := range custom {
		if c.value == "" {
			continue
		}
		color, err := studio.ParseColor(c.value)
		if err != nil {
			return err
		}
		if err := ctrl.SetCustomColor(c.ch, color); err != nil {
			return err
		}
	}

	log.Debug().Str("content", ctrl.State().Content).Msg("configured")
	return nil
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderOpts.text, "text", "t", "", "Single-line content")
	f.StringVarP(&renderOpts.multi, "multi", "m", "", "Multi-line content, used when --text is blank")
	f.IntVarP(&renderOpts.size, "size", "s", int(studio.DefaultSize), "Edge length in pixels (128, 256, 512 or 1024)")
	f.IntVar(&renderOpts.template, "template", 0, "Color template index")
	f.StringVar(&renderOpts.fg, "fg", "", "Custom foreground color, overrides the template")
	f.StringVar(&renderOpts.bg, "bg", "", "Custom background color, overrides the template")
	f.StringVarP(&renderOpts.out, "out", "o", ".", "Output directory")
	rootCmd.AddCommand(renderCmd)
}
