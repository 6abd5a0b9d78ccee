package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blacktop/chisel/internal/utils"
	"github.com/blacktop/chisel/pkg/chisel"
	"github.com/blacktop/chisel/pkg/engine"
)

var inlineOption = chisel.Argument{Short: "i", Long: "inline", Arg: "inline", Help: "Display the image in the terminal (iTerm2) instead of opening it.", Default: false, Boolean: true}

func visualizationCommands() []chisel.Command {
	return []chisel.Command{
		chisel.New(chisel.Spec{
			Name:        "showimage",
			Description: "Open a UIImage in Preview.app on your Mac.",
			Args:        []chisel.Argument{{Arg: "anImage", Type: "UIImage*", Help: "The image to examine."}},
			Options:     []chisel.Argument{inlineOption},
		}, func(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
			return showImage(ctx, s, args[0], opts.Bool("inline"))
		}),
		chisel.New(chisel.Spec{
			Name:        "showimageref",
			Description: "Open a CGImageRef in Preview.app on your Mac.",
			Args:        []chisel.Argument{{Arg: "anImageRef", Type: "CGImageRef", Help: "The image to examine."}},
			Options:     []chisel.Argument{inlineOption},
		}, func(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
			return showImage(ctx, s, fmt.Sprintf("(id)[UIImage imageWithCGImage:%s]", args[0]), opts.Bool("inline"))
		}),
		chisel.New(chisel.Spec{
			Name:        "showview",
			Description: "Render the given UIView into an image and open it in Preview.app on your Mac.",
			Args:        []chisel.Argument{{Arg: "aView", Type: "UIView*", Help: "The view to examine."}},
			Options:     []chisel.Argument{inlineOption},
		}, func(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
			return showImage(ctx, s, fmt.Sprintf("(id)[%[1]s screenshotImageOfRect:(CGRect)[%[1]s bounds]]", args[0]), opts.Bool("inline"))
		}),
		chisel.New(chisel.Spec{
			Name:        "showlayer",
			Description: "Render the given CALayer into an image and open it in Preview.app on your Mac.",
			Args:        []chisel.Argument{{Arg: "aLayer", Type: "CALayer*", Help: "The layer to examine."}},
			Options:     []chisel.Argument{inlineOption},
		}, runShowLayer),
	}
}

// showImage writes the PNG representation of image to the image directory
// and opens it.
func showImage(ctx context.Context, s *chisel.Session, image string, inline bool) error {
	png, err := engine.EvaluateObject(ctx, s.Engine, fmt.Sprintf("(id)UIImagePNGRepresentation((%s))", image))
	if err != nil {
		return err
	}
	if png.IsNil() {
		s.Println("Could not get a PNG representation of the image.")
		return nil
	}
	buf, ok, err := readData(ctx, s, png.String())
	if err != nil {
		return err
	}
	if !ok {
		s.Println("Could not get data.")
		return nil
	}

	if inline {
		if f, isFile := s.Out.(*os.File); isFile && utils.IsTerminal(f) {
			return utils.DisplayImageInTerminal(s.Out, buf, 0, 0)
		}
	}
	dir := s.Config.Paths.ImageDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, s.Now().UTC().Format(timestampFormat)+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	return s.Open(path)
}

func runShowLayer(ctx context.Context, s *chisel.Session, args []string, opts chisel.Values) error {
	layer := "(" + args[0] + ")"
	if err := engine.EvaluateEffect(ctx, s.Engine, fmt.Sprintf("UIGraphicsBeginImageContext(((CGRect)[(id)%s frame]).size)", layer)); err != nil {
		return err
	}
	defer func() {
		if err := engine.EvaluateEffect(ctx, s.Engine, "UIGraphicsEndImageContext()"); err != nil {
			s.Println(err)
		}
	}()
	if err := engine.EvaluateEffect(ctx, s.Engine, fmt.Sprintf("[(id)%s renderInContext:(void *)UIGraphicsGetCurrentContext()]", layer)); err != nil {
		return err
	}
	image, err := engine.EvaluatePointer(ctx, s.Engine, "(UIImage *)UIGraphicsGetImageFromCurrentImageContext()")
	if err != nil {
		s.Println(err)
		return nil
	}
	return showImage(ctx, s, image.String(), opts.Bool("inline"))
}
