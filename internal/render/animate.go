package render

import (
	"fmt"
	"image"
	"image/color/palette"
	imagedraw "image/draw"
	"image/gif"
	"io"
	"os"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

// AnimationSize is the edge length of animation frames.
const AnimationSize = 12 * vg.Centimeter

// FrameSchedule returns the trial counts at which a frame is drawn. Runs of up to
// 100 trials get a frame per trial; longer runs get one frame per step of the
// current decade (1..9, 10..90, 100..900, ...) and a final frame at n.
func FrameSchedule(n int) []int {
	if n <= 0 {
		return nil
	}
	if n <= 100 {
		frames := make([]int, n)
		for i := range frames {
			frames[i] = i + 1
		}
		return frames
	}

	var frames []int
	for step := 1; step <= n; step *= 10 {
		for k := 1; k <= 9 && k*step <= n; k++ {
			frames = append(frames, k*step)
		}
	}
	if frames[len(frames)-1] != n {
		frames = append(frames, n)
	}
	return frames
}

// FrameDelay returns the GIF delay per frame, in hundredths of a second,
// for an animation of n trials: 10ms above 1000 trials, 100ms above 100, 1s otherwise.
func FrameDelay(n int) int {
	switch {
	case n > 1000:
		return 1
	case n > 100:
		return 10
	default:
		return 100
	}
}

// Animate encodes a GIF whose frames show the board after each scheduled number of trials.
func Animate(w io.Writer, est estimator.Estimator, trials []estimator.Trial, size vg.Length) error {
	if len(trials) == 0 {
		return fmt.Errorf("no trials to animate")
	}
	if size <= 0 {
		size = AnimationSize
	}

	schedule := FrameSchedule(len(trials))
	delay := FrameDelay(len(trials))
	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(schedule)),
		Delay: make([]int, 0, len(schedule)),
	}

	for i, upto := range schedule {
		p, err := Board(est, trials[:upto])
		if err != nil {
			return err
		}
		p.Title.Text = fmt.Sprintf("frame %d/%d\n%s", i+1, len(schedule), p.Title.Text)

		canvas := vgimg.New(size, size)
		p.Draw(draw.New(canvas))
		img := canvas.Image()

		frame := image.NewPaletted(img.Bounds(), palette.Plan9)
		imagedraw.Draw(frame, img.Bounds(), img, img.Bounds().Min, imagedraw.Src)

		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("failed to encode gif: %w", err)
	}
	return nil
}

// SaveAnimation writes the animation to path.
func SaveAnimation(path string, est estimator.Estimator, trials []estimator.Trial, size vg.Length) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Animate(f, est, trials, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
