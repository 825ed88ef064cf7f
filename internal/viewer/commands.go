package viewer

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/mangaview/internal/command"
	"github.com/local/mangaview/internal/metrics"
	"github.com/local/mangaview/internal/navigation"
)

// Exec parses and runs one command line. Errors are logged, never returned:
// a bad line must not stop the viewer.
func (a *App) Exec(ctx context.Context, line string) {
	cmd, err := command.Parse(line)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring command")
		return
	}
	a.Run(ctx, cmd)
}

// Run executes a parsed command.
func (a *App) Run(ctx context.Context, cmd command.Command) {
	log.Debug().Str("action", cmd.Action).Strs("args", cmd.Args).Msg("command")
	var err error
	switch cmd.Action {
	case "add_images":
		a.addImages(ctx, cmd.Args)
	case "goto_tag":
		err = a.gotoTag(cmd)
	case "remove_tag":
		err = a.removeTag(cmd)
	case "goto_tag_relative":
		err = a.gotoTagRelative(cmd)
	case "goto_relative":
		err = a.gotoRelative(cmd)
	case "repage":
		a.toggleOverride(ctx)
	case "zoom":
		err = a.zoomBy(cmd)
	case "output_string":
		a.emit(cmd.Arg(0))
	case "change_mode":
		err = a.changeMode(cmd.Arg(0))
	case "quit":
		a.quit = true
	case "scroll":
		log.Debug().Strs("args", cmd.Args).Msg("scroll ignored")
	default:
		log.Warn().Str("action", cmd.Action).Msg("not a valid command")
	}
	if err != nil {
		log.Warn().Err(err).Str("action", cmd.Action).Msg("command failed")
	}
}

func (a *App) addImages(ctx context.Context, args []string) {
	tag := navigation.TagID(0)
	paths := args
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			tag = navigation.TagID(n)
			paths = args[1:]
		}
	}

	changed := false
	for _, p := range paths {
		pages, err := a.media.Expand(ctx, p)
		if err != nil {
			log.Warn().Err(err).Str("image", p).Msg("error loading image")
			metrics.IncSkipped("expand")
			continue
		}
		for _, pg := range pages {
			if a.addImage(tag, pg) {
				changed = true
			}
		}
	}
	if changed {
		a.repage(tag)
	}
}

func (a *App) tagArg(cmd command.Command) (navigation.TagID, bool, error) {
	n, err := cmd.Int(0)
	if err != nil {
		return 0, false, err
	}
	tag := navigation.TagID(n)
	if !a.index.Has(tag) {
		log.Warn().Int("tag", n).Msg("tag not present")
		return tag, false, nil
	}
	return tag, true, nil
}

func (a *App) gotoTag(cmd command.Command) error {
	tag, ok, err := a.tagArg(cmd)
	if err != nil || !ok {
		return err
	}
	a.moveTo(navigation.Cursor{Tag: tag})
	return nil
}

func (a *App) removeTag(cmd command.Command) error {
	tag, ok, err := a.tagArg(cmd)
	if err != nil || !ok {
		return err
	}
	if tag == a.cursor.Tag {
		if next, ok := a.index.Neighbor(tag); ok {
			a.moveTo(navigation.Cursor{Tag: next})
		} else {
			a.current = -1
			a.cursor = navigation.Cursor{}
			a.resetView()
		}
	}
	a.index.Remove(tag)
	delete(a.tags, tag)
	delete(a.overrides, tag)
	delete(a.unsettled, tag)
	log.Info().Int("tag", int(tag)).Msg("removed tag")
	return nil
}

func (a *App) gotoTagRelative(cmd command.Command) error {
	offset, err := cmd.Int(0)
	if err != nil {
		return err
	}
	if !a.index.Has(a.cursor.Tag) {
		return nil
	}
	tag, applied := a.index.Relative(a.cursor.Tag, offset)
	if applied == 0 {
		a.emit("last_in_tag_dir=" + strconv.Itoa(offset))
		return nil
	}
	a.moveTo(navigation.Cursor{Tag: tag})
	return nil
}

func (a *App) gotoRelative(cmd command.Command) error {
	offset, err := cmd.Int(0)
	if err != nil {
		return err
	}
	if a.index.Len() == 0 {
		return nil
	}
	next, _ := a.index.Advance(a.cursor, offset)
	if next == a.cursor {
		a.emit("last_in_dir=" + strconv.Itoa(offset))
		return nil
	}
	a.moveTo(next)
	return nil
}

func (a *App) toggleOverride(ctx context.Context) {
	if a.index.Len() == 0 || a.mode != Manga || a.current < 0 {
		return
	}
	tag := a.cursor.Tag
	on := a.tagOverrides(tag).Toggle(a.current)
	path := a.images[a.current].path
	if on {
		a.persisted[path] = struct{}{}
	} else {
		delete(a.persisted, path)
	}
	if a.store != nil {
		if err := a.store.Set(ctx, path, on); err != nil {
			log.Error().Err(err).Str("image", path).Msg("failed to persist repage override")
		}
	}
	a.repage(tag)
}

func (a *App) zoomBy(cmd command.Command) error {
	f, err := cmd.Float(0)
	if err != nil {
		return err
	}
	if f <= 0 {
		log.Warn().Float64("factor", f).Msg("zoom factor must be positive")
		return nil
	}
	a.zoom *= f
	if a.zoom > a.maxZoom {
		a.zoom = a.maxZoom
	}
	return nil
}

func (a *App) changeMode(name string) error {
	m, err := ParseMode(name)
	if err != nil {
		return err
	}
	if m == a.mode {
		return nil
	}
	a.mode = m
	a.emit("current_mode=" + m.String())
	for _, tag := range a.index.Tags() {
		a.repage(tag)
	}
	a.resetView()
	return nil
}
