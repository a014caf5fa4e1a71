// Package tcx writes workouts as Garmin Training Center XML.
package tcx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/nadahalli/thumper/internal/workout"
)

const (
	Namespace   = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"
	AllFileName = "workouts-export.tcx"

	timeLayout = "2006-01-02T15:04:05.000Z"
)

type database struct {
	XMLName    xml.Name   `xml:"TrainingCenterDatabase"`
	Xmlns      string     `xml:"xmlns,attr"`
	Activities activities `xml:"Activities"`
}

type activities struct {
	Activity []activity `xml:"Activity"`
}

type activity struct {
	Sport string `xml:"Sport,attr"`
	ID    string `xml:"Id"`
	Lap   lap    `xml:"Lap"`
}

type lap struct {
	StartTime        string  `xml:"StartTime,attr"`
	TotalTimeSeconds int     `xml:"TotalTimeSeconds"`
	Notes            *string `xml:"Notes,omitempty"`
	Track            track   `xml:"Track"`
}

type track struct {
	Trackpoints []trackpoint `xml:"Trackpoint"`
}

type trackpoint struct {
	Time         string     `xml:"Time"`
	HeartRateBpm *heartRate `xml:"HeartRateBpm,omitempty"`
}

type heartRate struct {
	Value int `xml:"Value"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Build renders one Activity per workout, in the order given.
func Build(workouts []workout.WithSamples) ([]byte, error) {
	doc := database{Xmlns: Namespace}
	for _, ws := range workouts {
		start := formatTime(ws.Workout.StartTime)
		a := activity{
			Sport: "Other",
			ID:    start,
			Lap: lap{
				StartTime:        start,
				TotalTimeSeconds: ws.Workout.DurationSeconds,
			},
		}
		if ws.Workout.JumpTimeSeconds != nil {
			notes := fmt.Sprintf("Jump time: %ds", *ws.Workout.JumpTimeSeconds)
			a.Lap.Notes = &notes
		}
		for _, s := range ws.Samples {
			tp := trackpoint{Time: formatTime(s.Timestamp)}
			if s.HeartRate != nil {
				tp.HeartRateBpm = &heartRate{Value: *s.HeartRate}
			}
			a.Lap.Track.Trackpoints = append(a.Lap.Track.Trackpoints, tp)
		}
		doc.Activities.Activity = append(doc.Activities.Activity, a)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode tcx: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FileName names a single-workout export after its local start time.
func FileName(w workout.Workout) string {
	return "workout-" + w.StartTime.Local().Format("2006-01-02-1504") + ".tcx"
}
