// Command genpage writes a mock outage page in the BVK accordion layout,
// with a panel titled for a chosen date. The output is useful as a local
// fixture: point a SOURCES entry at a file server hosting it and the full
// fetch, extract, and parse path runs against known content.
//
// Usage:
//
//	go run ./cmd/genpage -out testdata/kvarovi.html -date 2025-10-06
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="sr">
<head><meta charset="utf-8"><title>Кварови на мрежи</title></head>
<body>
<div class="elementor-accordion">
%s</div>
<div class="elementor-widget-container">Распоред аутоцистерни: Звездара 08-16х</div>
</body>
</html>
`

const panelTemplate = `  <div class="elementor-accordion-item">
    <div class="elementor-tab-title" id="tab-title-%[1]d" aria-controls="tab-content-%[1]d">%[2]s</div>
    <div class="elementor-tab-content" id="tab-content-%[1]d">%[3]s</div>
  </div>
`

const defaultBody = "До 22:00 часова. " +
	"Палилула: Кнез Данилова – Станоја Главаша, Далматинска. " +
	"Звездара: Булевар краља Александра 243-261. " +
	"Подели садржај: Facebook Twitter"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated HTML page")
	dateStr := flag.String("date", "", "panel date in YYYY-MM-DD form (default today)")
	body := flag.String("body", defaultBody, "panel body text")
	days := flag.Int("days", 3, "number of panels, newest last")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	date := time.Now()
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			return fmt.Errorf("parsing -date: %w", err)
		}
		date = parsed
	}

	var panels strings.Builder
	for i := *days - 1; i >= 0; i-- {
		d := date.AddDate(0, 0, -i)
		title := fmt.Sprintf("%02d.%02d.%d. (%s)", d.Day(), int(d.Month()), d.Year(), weekdaySr(d.Weekday()))
		content := "Нема планираних радова."
		if i == 0 {
			content = *body
		}
		fmt.Fprintf(&panels, panelTemplate, *days-i, title, content)
	}

	if err := os.WriteFile(*out, []byte(fmt.Sprintf(pageTemplate, panels.String())), 0o644); err != nil {
		return fmt.Errorf("writing page: %w", err)
	}
	log.Printf("wrote mock page: %s (panel date %s)", *out, date.Format("2006-01-02"))
	return nil
}

func weekdaySr(d time.Weekday) string {
	names := map[time.Weekday]string{
		time.Monday:    "понедељак",
		time.Tuesday:   "уторак",
		time.Wednesday: "среда",
		time.Thursday:  "четвртак",
		time.Friday:    "петак",
		time.Saturday:  "субота",
		time.Sunday:    "недеља",
	}
	return names[d]
}
