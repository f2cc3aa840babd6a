// Package driver provides the database/sql driver that backs a tasmania session.
//
// Every named source is parsed, its column types inferred, and the rows are
// copied into a single in-memory SQLite database. Empty cells are stored as
// NULL and recognized dates are normalized to ISO8601 so SQLite date
// functions work on them.
//
// Usage:
//
//	connector, err := driver.NewConnector([]driver.Source{
//		{Name: "flights", Path: "flights.csv"},
//		{Name: "temperature", Path: "temperature.csv.gz"},
//	})
//	db := sql.OpenDB(connector)
//	db.SetMaxOpenConns(1)
//
// A DSN of the form "flights=flights.csv;co2=co2.parquet" is also accepted by
// sql.Open("tasmania", dsn). A path without a name is registered under its
// file name without extensions.
package driver
