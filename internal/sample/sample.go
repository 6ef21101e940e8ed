// Package sample builds deliberately messy customer tables for demos and
// tests of the cleaning pipeline.
package sample

import (
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/KaramelBytes/rawready/internal/dataset"
)

// Header is the column layout of generated tables.
var Header = []string{"Customer ID", "Full Name", "Email", "Company", "City", "Age", "Signup Date"}

// dateLayouts are the spellings used for the signup date column. All of them
// are understood by the date fixing step.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/06", "Jan 2, 2006", "2006.01.02"}

const (
	companyPool = 6
	cityPool    = 5
	dupEvery    = 20 // every 20th row repeats an earlier one
	nullAgeMod  = 9
	badEmailMod = 11
)

// Generate returns a table of n customer rows. The same non-zero seed always
// yields the same table; a zero seed picks a random one.
//
// The data carries the defects the cleaner is meant to fix: names with random
// casing and stray whitespace, near-duplicate company and city spellings,
// signup dates in mixed formats, malformed or missing emails, missing ages and
// repeated rows.
func Generate(n int, seed int64) *dataset.Table {
	f := gofakeit.New(seed)
	companies := pool(f, companyPool, f.Company)
	cities := pool(f, cityPool, f.City)
	from := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	t := &dataset.Table{Name: "sample.csv", Header: append([]string(nil), Header...)}
	for i := 0; i < n; i++ {
		if i%dupEvery == dupEvery-1 {
			t.Rows = append(t.Rows, append(dataset.Row(nil), t.Rows[i-7]...))
			continue
		}
		first, last := f.FirstName(), f.LastName()
		row := dataset.Row{
			dataset.Text(strconv.Itoa(1000 + i)),
			dataset.Text(messyName(f, first+" "+last)),
			email(f, i, first, last),
			dataset.Text(variant(f, f.RandomString(companies))),
			dataset.Text(variant(f, f.RandomString(cities))),
			age(f, i),
			dataset.Text(f.DateRange(from, to).Format(f.RandomString(dateLayouts))),
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func pool(f *gofakeit.Faker, n int, gen func() string) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for tries := 0; len(out) < n && tries < n*20; tries++ {
		v := gen()
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func messyName(f *gofakeit.Faker, name string) string {
	switch f.Number(0, 4) {
	case 0:
		name = strings.ToUpper(name)
	case 1:
		name = strings.ToLower(name)
	case 2:
		name = "  " + name
	case 3:
		name = strings.Replace(name, " ", "   ", 1) + " "
	}
	return name
}

// variant misspells s the way hand-typed data tends to: shouting, trailing
// punctuation or padding. Most rows keep the original spelling.
func variant(f *gofakeit.Faker, s string) string {
	switch f.Number(0, 9) {
	case 0:
		return strings.ToUpper(s)
	case 1:
		return strings.ToLower(s)
	case 2:
		return s + "."
	case 3:
		return " " + s + " "
	}
	return s
}

func email(f *gofakeit.Faker, i int, first, last string) dataset.Cell {
	local := strings.ToLower(first + "." + last)
	switch {
	case i%badEmailMod == 3:
		return dataset.Text(local + " at " + f.DomainName())
	case i%badEmailMod == 7:
		return dataset.Text(local + "@" + strings.SplitN(f.DomainName(), ".", 2)[0])
	case i%(badEmailMod*3) == 5:
		return dataset.Null()
	}
	return dataset.Text(local + "@" + f.DomainName())
}

func age(f *gofakeit.Faker, i int) dataset.Cell {
	if i%nullAgeMod == 4 {
		return dataset.Null()
	}
	return dataset.Text(strconv.Itoa(f.Number(18, 80)))
}
