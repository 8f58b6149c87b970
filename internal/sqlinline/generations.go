package sqlinline

const QInsertGeneration = `--sql 90359d3c-9285-4511-b435-dfaaea26e6b7
insert into generations(
  id,
  owner_id,
  conversation_id,
  source_message_id,
  media_type,
  provider,
  model,
  prompt,
  locale,
  parameters,
  clarification_questions,
  status,
  progress,
  version,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::uuid,
  $3::uuid,
  $4::uuid,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  nullif($9::text, ''),
  coalesce($10::jsonb, '{}'::jsonb),
  $11::jsonb,
  $12::text,
  0,
  1,
  now(),
  now()
);
`

const QSelectGenerationByID = `--sql f57ebc71-6210-4657-b3b2-e2a1cf7a5ecc
select
  id,
  coalesce(external_job_id, ''),
  owner_id,
  conversation_id,
  source_message_id,
  media_type,
  provider,
  model,
  prompt,
  coalesce(locale, ''),
  parameters,
  clarification_questions,
  clarification_responses,
  status,
  progress,
  result,
  coalesce(error_message, ''),
  version,
  created_at,
  updated_at
from generations
where id = $1::uuid
limit 1;
`

const QSelectGenerationByExternalJobID = `--sql a96852cf-3765-4d61-b12c-63c6f8bafb80
select
  id,
  coalesce(external_job_id, ''),
  owner_id,
  conversation_id,
  source_message_id,
  media_type,
  provider,
  model,
  prompt,
  coalesce(locale, ''),
  parameters,
  clarification_questions,
  clarification_responses,
  status,
  progress,
  result,
  coalesce(error_message, ''),
  version,
  created_at,
  updated_at
from generations
where external_job_id = $1::text
limit 1;
`

const QListGenerationsByOwner = `--sql 2f3f5e0c-6222-4455-8d2f-d5226d67d56f
select
  id,
  coalesce(external_job_id, ''),
  owner_id,
  conversation_id,
  source_message_id,
  media_type,
  provider,
  model,
  prompt,
  coalesce(locale, ''),
  parameters,
  clarification_questions,
  clarification_responses,
  status,
  progress,
  result,
  coalesce(error_message, ''),
  version,
  created_at,
  updated_at
from generations
where owner_id = $1::uuid
order by created_at desc
limit $2::int offset $3::int;
`

const QListStaleGenerations = `--sql 72761d05-e343-4dbb-b249-2d89e9820a08
select
  id,
  coalesce(external_job_id, ''),
  owner_id,
  conversation_id,
  source_message_id,
  media_type,
  provider,
  model,
  prompt,
  coalesce(locale, ''),
  parameters,
  clarification_questions,
  clarification_responses,
  status,
  progress,
  result,
  coalesce(error_message, ''),
  version,
  created_at,
  updated_at
from generations
where status in ('queued', 'processing')
  and updated_at < $1::timestamptz
order by updated_at asc
limit $2::int;
`

const QUpdateGenerationIfVersion = `--sql 606d9a42-3774-4059-8485-bdb2cd54e10f
update generations
set external_job_id = coalesce(external_job_id, nullif($3::text, '')),
    clarification_questions = $4::jsonb,
    clarification_responses = $5::jsonb,
    status = $6::text,
    progress = $7::int,
    result = $8::jsonb,
    error_message = nullif($9::text, ''),
    version = $2::bigint + 1,
    updated_at = now()
where id = $1::uuid
  and version = $2::bigint;
`
