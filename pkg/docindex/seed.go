package docindex

// seedCorpus is the built-in minimal documentation used when no source URL
// is configured or the initial fetch fails.
const seedCorpus = `# Flight Log Message Types

## ATT (Attitude)
Roll, Pitch, and Yaw in degrees, sampled at time_boot_ms. Roll and Pitch are
typically small in stable flight; large swings indicate aggressive
maneuvering or instability.

## GPS
Position fixes indexed by instance (GPS[0], GPS[1], ...). Fields include
Lat, Lng, Alt (altitude above the GPS origin, meters), Spd (ground speed),
and NSats (satellite count). Alt is the field most commonly queried for
"maximum altitude" style questions.

## BARO (Barometer)
Alt (pressure altitude, meters) and Press (raw pressure). Useful cross-check
against GPS.Alt.

## CTUN (Control Tuning)
Throttle output and altitude control state.

## BAT (Battery)
Volt, Curr (current draw), and CurrTot (cumulative consumed current).

## Events
Discrete occurrences such as arm/disarm, mode changes, and error flags,
each with a timestamp and description, not indexed by time_boot_ms.

## Querying tips
Every time-series message type carries a time_boot_ms column. Use
MAX/MIN/AVG for summary statistics, and ORDER BY time_boot_ms for
chronological inspection. Percentile queries use the form
PERCENTILE(column, 0.95) over a table.
`
