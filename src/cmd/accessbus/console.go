package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"accessbus/src/ui"
	"accessbus/src/workflow"

	"github.com/yeqown/go-qrcode"
)

// console renders screens, alerts and speech as lines of text.
type console struct {
	out io.Writer
	err io.Writer
}

func (c console) Navigate(s ui.Screen) {
	fmt.Fprintf(c.out, "-> %s\n", s)
}

func (c console) Alert(msg string) {
	fmt.Fprintln(c.err, msg)
}

func (c console) Speak(text string) {
	fmt.Fprintf(c.out, "(say) %s\n", text)
}

// fixedLocation is the position given on the command line.
type fixedLocation struct {
	lat, lon float64
}

func (l fixedLocation) Location(context.Context) (float64, float64, bool, error) {
	if math.IsNaN(l.lat) || math.IsNaN(l.lon) {
		return 0, 0, false, nil
	}
	return l.lat, l.lon, true, nil
}

func passPayload(reservationID uint, vehicleID string) string {
	return fmt.Sprintf("accessbus:reservation:%d:%s", reservationID, vehicleID)
}

// savePass writes the boarding pass QR code to file as a JPEG.
func savePass(file string, reservationID uint, vehicleID string) error {
	qrc, err := qrcode.New(passPayload(reservationID, vehicleID))
	if err != nil {
		return err
	}
	return qrc.Save(file)
}

func printNearby(w io.Writer, res workflow.NearbyResult) {
	switch res.State {
	case workflow.NoLocation:
		fmt.Fprintln(w, "Location unavailable. Pass --lat and --lon.")
	case workflow.Empty:
		fmt.Fprintln(w, "No riders nearby.")
	case workflow.LookupFailed:
		fmt.Fprintln(w, "Could not load nearby riders.")
	default:
		for _, r := range res.Reservations {
			dist := ""
			if r.Distance != nil {
				dist = fmt.Sprintf(" %.2f km", *r.Distance)
			}
			fmt.Fprintf(w, "#%d %s -> %s bus %s in %d min, %d volunteers, %s%s\n",
				r.ReservationID, r.OriginID, r.DestinationID, r.VehicleID, r.ArrivalMin, r.VolunteerCount, workflow.RampLabel(r.RampType), dist)
		}
	}
}
