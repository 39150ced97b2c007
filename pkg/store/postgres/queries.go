package postgres

const broadcastColumns = `id, status, content, target, scheduled_at, lease_expires_at, claim_id, created_at, updated_at`

const qCreateBroadcast = `
insert into broadcasts (id, status, content, target, scheduled_at)
values ($1, $2, $3, $4, $5)
returning ` + broadcastColumns

const qGetBroadcast = `select ` + broadcastColumns + ` from broadcasts where id = $1`

const qGetBroadcastStatus = `select status from broadcasts where id = $1`

// Due rows are locked with skip locked so concurrent schedulers never claim the same broadcast.
// Each claim gets a fresh claim_id, which fences off the previous lease holder.
const qClaimDueBroadcasts = `
with due as (
    select id
    from broadcasts
    where (status = 'scheduled' and scheduled_at <= $1)
       or (status = 'sending' and lease_expires_at < $1)
    order by scheduled_at asc
    for update skip locked
    limit $2
),
claimed as (
    update broadcasts
    set status = 'sending', lease_expires_at = $3, claim_id = gen_random_uuid()::text, updated_at = now()
    where id in (select id from due)
    returning ` + broadcastColumns + `
)
select * from claimed order by scheduled_at asc`

const qRenewLease = `
update broadcasts
set lease_expires_at = $3, updated_at = now()
where id = $1 and claim_id = $2 and lease_expires_at is not null`

const qCompleteBroadcast = `
update broadcasts
set status = 'completed', lease_expires_at = null, updated_at = now()
where id = $1 and claim_id = $2 and status = 'sending'`

const qGetBroadcastClaim = `select claim_id from broadcasts where id = $1`

// A retry lease lives on a final broadcast; the scheduler never claims those.
const qClaimRetry = `
update broadcasts
set lease_expires_at = $3, claim_id = gen_random_uuid()::text, updated_at = now()
where id = $1
  and status in ('completed', 'cancelled', 'failed')
  and (lease_expires_at is null or lease_expires_at < $2)
returning ` + broadcastColumns

const qReleaseRetry = `
update broadcasts
set lease_expires_at = null, updated_at = now()
where id = $1 and claim_id = $2 and lease_expires_at is not null
  and status in ('completed', 'cancelled', 'failed')`

const qMarkBroadcast = `
update broadcasts
set status = $2,
    lease_expires_at = case when $4::boolean then null else lease_expires_at end,
    updated_at = now()
where id = $1 and status = any($3::text[])`

const qScheduleBroadcast = `
update broadcasts
set status = 'scheduled', scheduled_at = $2, updated_at = now()
where id = $1 and status = 'draft'`

const deliveryColumns = `id, broadcast_id, recipient_id, status, last_error, retry_count, max_retries, sent_at, updated_at`

// The no-op update makes returning yield the existing row on conflict.
const qUpsertDelivery = `
insert into deliveries (id, broadcast_id, recipient_id, status, max_retries)
values ($1, $2, $3, 'pending', $4)
on conflict (broadcast_id, recipient_id)
do update set broadcast_id = excluded.broadcast_id
returning ` + deliveryColumns

const qMarkDelivery = `
update deliveries
set status = $2,
    last_error = $3,
    sent_at = case when $2 = 'sent' then now() else sent_at end,
    updated_at = now()
where id = $1 and status = 'pending'
returning ` + deliveryColumns

const qRecordRetry = `
update deliveries
set retry_count = retry_count + 1, last_error = $2, updated_at = now()
where id = $1 and status = 'pending'
returning ` + deliveryColumns

const qGetDelivery = `select ` + deliveryColumns + ` from deliveries where id = $1`

const qSkipPendingRows = `
update deliveries
set status = 'skipped', updated_at = now()
where broadcast_id = $1 and status = 'pending'`

const qSkipMissingRows = `
insert into deliveries (id, broadcast_id, recipient_id, status)
select gen_random_uuid()::text, $1, r, 'skipped'
from unnest($2::text[]) as r
on conflict (broadcast_id, recipient_id) do nothing`

// The outer select reads the snapshot before the update, so reset rows are
// returned once, from the reset branch.
const qResetFailed = `
with reset as (
    update deliveries
    set status = 'pending', retry_count = 0, updated_at = now()
    where broadcast_id = $1 and status = 'failed'
    returning ` + deliveryColumns + `
)
select * from reset
union all
select ` + deliveryColumns + `
from deliveries
where broadcast_id = $1 and status = 'pending'
order by recipient_id asc`

const qListDeliveries = `
select ` + deliveryColumns + `
from deliveries
where broadcast_id = $1 and (cardinality($2::text[]) = 0 or status = any($2::text[]))
order by recipient_id asc`

const qDeliveryStats = `
select status, count(*)
from deliveries
where broadcast_id = $1
group by status`

const jobColumns = `id, requester_id, status, params, provider_handle, callback_token, result_ref, error,
    delivery_status, delivery_error, dispatched_at, finished_at, created_at, updated_at`

const qCreateJob = `
insert into jobs (id, requester_id, status, params, callback_token)
values ($1, $2, 'queued', $3, $4)
returning ` + jobColumns

const qGetJob = `select ` + jobColumns + ` from jobs where id = $1`

const qMarkJobDispatched = `
update jobs
set status = 'dispatched', provider_handle = $2, dispatched_at = now(), updated_at = now()
where id = $1 and status = 'queued'
returning ` + jobColumns

const qFinalizeJob = `
update jobs
set status = $2, result_ref = $3, error = $4, finished_at = now(), updated_at = now()
where id = $1 and status in ('queued', 'dispatched')
returning ` + jobColumns

const qFailStaleJobs = `
with stale as (
    select id
    from jobs
    where status in ('queued', 'dispatched') and coalesce(dispatched_at, created_at) < $1
    for update skip locked
)
update jobs
set status = 'failed', error = $2, finished_at = now(), updated_at = now()
where id in (select id from stale)
returning ` + jobColumns

const qSetJobDelivery = `
update jobs
set delivery_status = $2, delivery_error = $3, updated_at = now()
where id = $1 and delivery_status = ''`

const qJobExists = `select exists(select 1 from jobs where id = $1)`

const qResolveAll = `select id from recipients where active order by id`

const qResolveGroup = `select id from recipients where active and $1 = any(groups) order by id`

const qResolveExclude = `select id from recipients where active and not ($1 = any(groups)) order by id`

const qUpsertRecipient = `
insert into recipients (id, groups, active)
values ($1, $2, true)
on conflict (id) do update set groups = excluded.groups, active = true`
