package report

// Schema is the DDL executed once against a fresh SQLiteLogger database,
// one table per output kind of spec.md S6. Grounded on the teacher's
// SQLiteLogger.Init (sqlite_logger.go), adapted from one table per file
// to one table per kind in a shared database.
const Schema = `
create table if not exists virus_info (
	virus_id integer not null primary key,
	virus_uid text,
	virus_name text,
	sequence integer,
	date_first_recorded integer,
	parent_virus_id integer
);
create table if not exists virus_hist (
	date integer,
	virus_id integer,
	virus_name text,
	state_label text,
	count integer
);
create table if not exists tool_info (
	id integer not null primary key,
	tool_uid text,
	tool_name text,
	sequence integer,
	date_first_recorded integer
);
create table if not exists tool_hist (
	date integer,
	id integer,
	state_label text,
	count integer
);
create table if not exists total_hist (
	date integer,
	n_active_viruses integer,
	state_label text,
	count integer
);
create table if not exists transmission (
	date integer,
	virus_id integer,
	virus_name text,
	source_exposure_date integer,
	source integer,
	target integer
);
create table if not exists transition (
	date integer,
	from_label text,
	to_label text,
	counts integer
);
create table if not exists reproductive_number (
	virus_id integer,
	virus_name text,
	source integer,
	source_exposure_date integer,
	rt integer
);
create table if not exists generation_time (
	virus_id integer,
	source integer,
	source_exposure_date integer,
	gentime integer
);
`
