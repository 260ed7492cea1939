package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/lifecycle"
	"github.com/smazurov/uvcrtsp/internal/streaming"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached USB capture devices",
		Long:  `Lists the USB video devices found in sysfs with the RTSP port and URL each one would stream on.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sysRoot, _ := cmd.Flags().GetString("sys-root")
			devRoot, _ := cmd.Flags().GetString("dev-root")
			basePort, _ := cmd.Flags().GetInt("base-port")
			host, _ := cmd.Flags().GetString("host")

			devices, err := capture.ScanDevices(sysRoot, devRoot)
			if err != nil {
				return fmt.Errorf("scan devices: %w", err)
			}
			return writeDevices(cmd.OutOrStdout(), devices, basePort, host)
		},
	}

	cmd.Flags().String("sys-root", capture.DefaultSysRoot, "sysfs root")
	cmd.Flags().String("dev-root", capture.DefaultDevRoot, "device node root")
	cmd.Flags().Int("base-port", lifecycle.DefaultBasePort, "RTSP base port")
	cmd.Flags().String("host", "localhost", "Host used in RTSP URLs")
	return cmd
}

func writeDevices(out io.Writer, devices []capture.Device, basePort int, host string) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No capture devices found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tNODE\tID\tLABEL\tURL")
	for _, dev := range devices {
		url := "-"
		if port, err := lifecycle.DerivePortFrom(basePort, dev.Name); err == nil {
			url = streaming.StreamURL(host, port)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", dev.Name, dev.Path, dev.ID(), dev.Label, url)
	}
	return w.Flush()
}
