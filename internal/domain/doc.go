// Package domain models the sensor readings served by the dashboard and the
// pure transformations applied to them.
//
// # Data Source
//
// Readings live in a PostgREST-style tabular store, one table per logger:
// satellite beacon bands (ku, ka), a disdrometer (distro) and a weather
// station split into temp_humid, wind and solar tables. Each table is read
// as a JSON array of flat row objects.
//
// # Row Shapes
//
// Every source uses exactly one time encoding, selected once per source via
// [RowShape]:
//
//	fragmented  {"year":2024,"month":1,"day":5,"time":"10:00:00", ...}
//	            Joined as 2024-01-05T10:00:00 and read in the source timezone.
//	instant     {"inserted_at":"2024-01-05T10:00:00.123+00:00", ...}
//	            Parsed directly; zone-less values use the source timezone.
//
// Rows with missing date parts or an unreadable time of day have no
// timestamp. They are skipped by every transformation and never fail a batch.
//
// # Series
//
// Band tables carry marker1, marker2, ... columns. [GroupSeries] turns them
// into one chronological series per column. Weather-station tables store an
// NMEA sentence per row ($WIXDR, $WIMWV, $HYUDF) decoded by [ParseNMEA].
//
// # Ranges and Exports
//
// [DateRange] bounds are both inclusive. [ExportCSV] follows a
// first-row-defines-schema policy: later rows are rendered against the first
// row's columns, so extra fields are dropped and missing ones are blank.
package domain
