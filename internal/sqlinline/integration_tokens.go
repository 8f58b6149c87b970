package sqlinline

const QSelectIntegrationToken = `--sql b11b9ea3-a6b2-4fd7-8d1a-1d664ee5ba74
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 2763311f-31ef-4747-bdb4-9bca917f6c1f
insert into integration_tokens(provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
  token = excluded.token,
  properties = excluded.properties,
  updated_at = now();
`
