package sqlinline

const QInsertMessage = `--sql 6e8ae5cd-7234-48c1-b6c1-b72e2f001d98
insert into messages(id, conversation_id, role, kind, body, metadata, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, coalesce($6::jsonb, '{}'::jsonb), now());
`

const QListRecentMessages = `--sql d4239054-1690-4bef-b58b-ce6f99eeccb5
select id, conversation_id, role, kind, body, metadata, created_at
from messages
where conversation_id = $1::uuid
order by created_at desc
limit $2::int;
`
