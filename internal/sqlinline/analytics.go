package sqlinline

const QIncrementDailyCounters = `--sql 53778e73-792d-416e-a9e9-56eec2689cf3
insert into analytics_daily(
  day, requested, dispatched, videos_completed, audio_completed, failed, cancelled
) values (
  $1::date, $2::int, $3::int, $4::int, $5::int, $6::int, $7::int
) on conflict (day) do update set
  requested = analytics_daily.requested + excluded.requested,
  dispatched = analytics_daily.dispatched + excluded.dispatched,
  videos_completed = analytics_daily.videos_completed + excluded.videos_completed,
  audio_completed = analytics_daily.audio_completed + excluded.audio_completed,
  failed = analytics_daily.failed + excluded.failed,
  cancelled = analytics_daily.cancelled + excluded.cancelled,
  updated_at = now();
`

const QSelectLatestDailySummary = `--sql d35f2105-b453-489c-898b-d6fddec6dbc5
select day, requested, dispatched, videos_completed, audio_completed, failed, cancelled, created_at, updated_at
from analytics_daily
order by day desc
limit 1;
`
