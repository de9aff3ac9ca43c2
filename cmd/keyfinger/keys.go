package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/keyfinger/internal/calibration"
	"github.com/ayusman/keyfinger/internal/engine"
)

// frameFlags adds the flags selecting where a command's frame comes from.
func frameFlags(a *app, cmd *cobra.Command) {
	cmd.Flags().StringP("image", "i", "", "Image file to use instead of the camera")
	cmd.Flags().Int("camera", -1, "Camera device index")
	cmd.Flags().String("camera-url", "", "HTTP snapshot URL")
	cmd.Flags().StringP("output", "o", "", "Directory for annotated images")

	a.bind(cmd, map[string]string{
		"camera":     "camera.device",
		"camera-url": "camera.url",
		"output":     "output.dir",
	})
}

func recordCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record KEY",
		Short: "Record a key's position from the reference fingertip",
		Long: `Detect hands in a frame and record the reference fingertip (right index by
default) as KEY's calibration position. Recording a key again replaces it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, _ := cmd.Flags().GetString("image")
			return a.runRecord(cmd.OutOrStdout(), args[0], image)
		},
	}
	frameFlags(a, cmd)
	return cmd
}

func inferCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer KEY",
		Short: "Attribute a keystroke on KEY to a finger",
		Long: `Detect hands in a frame and report the fingertip closest to KEY's
calibration position.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, _ := cmd.Flags().GetString("image")
			return a.runInfer(cmd.OutOrStdout(), args[0], image)
		},
	}
	frameFlags(a, cmd)
	return cmd
}

func (a *app) runRecord(out io.Writer, key, image string) error {
	if err := calibration.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}

	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	d, err := a.openDetector()
	if err != nil {
		return err
	}
	e := a.newEngine(d, cal.store)
	defer e.Close()

	frame, err := a.loadFrame(image)
	if err != nil {
		return err
	}
	defer frame.Close()

	rec, err := e.RecordCalibration(key, frame)
	if errors.Is(err, engine.ErrNotDetected) {
		return fmt.Errorf("%s fingertip not found in frame", e.Reference().Name())
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Recorded %s at (%d, %d) using %s\n", rec.Key, rec.Position.X, rec.Position.Y, rec.Finger.Name())

	ann, err := a.openAnnotator()
	if err != nil {
		return err
	}
	if ann != nil {
		path, err := ann.Calibration(frame, rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s\n", path)
	}
	return nil
}

func (a *app) runInfer(out io.Writer, key, image string) error {
	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	// Check the calibration before starting the detector subprocess.
	if _, err := cal.store.Lookup(key); errors.Is(err, calibration.ErrNotFound) {
		return fmt.Errorf("key %s not calibrated", key)
	}

	d, err := a.openDetector()
	if err != nil {
		return err
	}
	e := a.newEngine(d, cal.store)
	defer e.Close()

	frame, err := a.loadFrame(image)
	if err != nil {
		return err
	}
	defer frame.Close()

	attr, err := e.InferAttribution(key, frame)
	if err != nil {
		return err
	}

	printAttribution(out, attr)

	ann, err := a.openAnnotator()
	if err != nil {
		return err
	}
	if ann != nil {
		path, err := ann.Attribution(frame, attr)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s\n", path)
	}
	return nil
}

func printAttribution(out io.Writer, attr *engine.Attribution) {
	if !attr.Match.Found {
		fmt.Fprintf(out, "%s: no hands detected\n", attr.Key)
		return
	}

	fmt.Fprintf(out, "%s: %s (%s), %.1f px from (%d, %d)\n",
		attr.Key, attr.Match.Label.Name(), attr.Match.Label, attr.Match.Distance, attr.Target.X, attr.Target.Y)

	if v := attr.Verdict; v != nil && v.Known {
		if v.Correct {
			fmt.Fprintln(out, "Correct finger")
		} else {
			fmt.Fprintf(out, "Expected %s\n", v.Expected.Name())
		}
	}
}
