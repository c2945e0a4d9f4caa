package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/usb"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var camerasOnly bool
	var showFormats bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List camera hardware",
		Long:  `Enumerates the USB bus for devices exposing a video function and lists the V4L2 capture nodes they registered.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			devices, err := usb.ListDevices(logging.GetLogger("usb"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUS\tADDR\tVENDOR\tPRODUCT\tCLASS\tCAMERA")
			for _, dev := range devices {
				if camerasOnly && !dev.IsCamera {
					continue
				}
				camera := ""
				if dev.IsCamera {
					camera = "yes"
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
					dev.Bus, dev.Address, dev.VendorID, dev.ProductID, dev.Class, camera)
			}
			w.Flush()

			printVideoNodes(showFormats)
		},
	}

	cmd.Flags().BoolVar(&camerasOnly, "cameras", false, "Only show USB devices with a video function")
	cmd.Flags().BoolVar(&showFormats, "formats", false, "List supported formats per capture node")

	return cmd
}

func printVideoNodes(showFormats bool) {
	nodes, err := v4l2.FindDevices()
	if err != nil || len(nodes) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tNAME\tTYPE\tREADY\tSIGNAL")
	for _, node := range nodes {
		status := v4l2.GetDeviceStatus(node.DevicePath)
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			node.DevicePath, node.DeviceName, deviceTypeName(status.DeviceType), status.Ready,
			signalSummary(node.DevicePath, status.DeviceType))
	}
	w.Flush()

	if !showFormats {
		return
	}
	for _, node := range nodes {
		formats, err := v4l2.GetFormats(node.DevicePath)
		if err != nil || len(formats) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", node.DevicePath)
		for _, format := range formats {
			resolutions, _ := v4l2.GetResolutions(node.DevicePath, format.PixelFormat)
			fmt.Printf("  %s:\n", format.FormatName)
			for _, res := range resolutions {
				rates, _ := v4l2.GetFramerates(node.DevicePath, format.PixelFormat, res.Width, res.Height)
				fmt.Printf("    %dx%d%s\n", res.Width, res.Height, framerateList(rates))
			}
		}
	}
}

// signalSummary describes the incoming signal on an HDMI capture node.
// Webcams have no signal concept, so they get a dash.
func signalSummary(path string, deviceType v4l2.DeviceType) string {
	if deviceType != v4l2.DeviceTypeHDMI {
		return "-"
	}
	sig := v4l2.GetDVTimings(path)
	if sig.State == v4l2.SignalStateLocked {
		return fmt.Sprintf("%dx%d@%.2f", sig.Width, sig.Height, sig.FPS)
	}
	return signalStateName(sig.State)
}

func signalStateName(s v4l2.SignalState) string {
	switch s {
	case v4l2.SignalStateNoLink:
		return "no link"
	case v4l2.SignalStateNoSignal:
		return "no signal"
	case v4l2.SignalStateUnstable:
		return "unstable"
	case v4l2.SignalStateLocked:
		return "locked"
	case v4l2.SignalStateOutOfRange:
		return "out of range"
	case v4l2.SignalStateNotSupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func framerateList(rates []v4l2.Framerate) string {
	if len(rates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(rates))
	for _, rate := range rates {
		parts = append(parts, strconv.FormatFloat(rate.FPS(), 'f', -1, 64))
	}
	return " @ " + strings.Join(parts, "/") + " fps"
}

func deviceTypeName(t v4l2.DeviceType) string {
	switch t {
	case v4l2.DeviceTypeWebcam:
		return "webcam"
	case v4l2.DeviceTypeHDMI:
		return "hdmi"
	default:
		return "unknown"
	}
}
