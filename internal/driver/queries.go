package driver

const (
	// Media work upserts. The coalesce chains implement legacy-schema
	// reconciliation in the same statement as the upsert: a node carrying
	// only the old year/type properties gets them copied into
	// release_year/media_type, then the old names are removed. The chain
	// order means an incoming value always wins, an existing current value
	// is kept otherwise, and the legacy value is the fallback.
	UpsertMediaWorkByMediaIDQuery = `
		MERGE (w:MediaWork {media_id: $media_id})
		SET w.title = coalesce($title, w.title),
			w.wikidata_id = coalesce($wikidata_id, w.wikidata_id),
			w.release_year = coalesce($release_year, w.release_year, w.year),
			w.media_type = coalesce($media_type, w.media_type, w.type),
			w.creator = coalesce($creator, w.creator),
			w.source = coalesce($source, w.source)
		REMOVE w.year, w.type
		RETURN w.media_id AS media_id, w.wikidata_id AS wikidata_id
	`

	UpsertMediaWorkByWikidataIDQuery = `
		MERGE (w:MediaWork {wikidata_id: $wikidata_id})
		SET w.media_id = coalesce(w.media_id, $new_media_id),
			w.title = coalesce($title, w.title),
			w.release_year = coalesce($release_year, w.release_year, w.year),
			w.media_type = coalesce($media_type, w.media_type, w.type),
			w.creator = coalesce($creator, w.creator),
			w.source = coalesce($source, w.source)
		REMOVE w.year, w.type
		RETURN w.media_id AS media_id, w.wikidata_id AS wikidata_id
	`

	// NextMediaIDQuery yields the highest allocated MW_<n> suffix, or null
	// when no locally keyed works exist yet.
	NextMediaIDQuery = `
		MATCH (w:MediaWork)
		WHERE w.media_id STARTS WITH 'MW_'
		RETURN max(toInteger(substring(w.media_id, 3))) AS n
	`

	UpsertHistoricalFigureQuery = `
		MERGE (f:HistoricalFigure {canonical_id: $canonical_id})
		SET f.name = coalesce($name, f.name),
			f.era = coalesce($era, f.era)
		RETURN f.canonical_id AS canonical_id
	`

	UserByEmailQuery = `
		MATCH (u:User {email: $email})
		RETURN u.email AS email, u.name AS name
	`

	// Appearance upserts. The work endpoint is matched by media_id or
	// wikidata_id depending on the caller's reference; both resolve to the
	// same node, so the edge is the same whichever form is used. The
	// relationship payload is identical in both branches; only the
	// provenance stamps differ between create and match.
	upsertAppearanceBody = `
		MATCH (u:User {email: $user_email})
		MERGE (f)-[r:APPEARS_IN]->(w)
		ON CREATE SET r.created_at = $now,
			r.created_by = $user_email,
			r.created_by_name = u.name
		ON MATCH SET r.updated_at = $now,
			r.updated_by = $user_email,
			r.updated_by_name = u.name
		SET r.sentiment_tags = $sentiment_tags,
			r.tag_metadata = $tag_metadata,
			r.sentiment = $sentiment,
			r.role_description = $role_description,
			r.is_protagonist = $is_protagonist,
			r.actor_name = $actor_name
		RETURN f.canonical_id AS figure_id, w.media_id AS media_id,
			r.created_at AS created_at, r.updated_at AS updated_at
	`

	UpsertAppearanceByMediaIDQuery = `
		MATCH (f:HistoricalFigure {canonical_id: $figure_id})
		MATCH (w:MediaWork {media_id: $work_ref})
	` + upsertAppearanceBody

	UpsertAppearanceByWikidataIDQuery = `
		MATCH (f:HistoricalFigure {canonical_id: $figure_id})
		MATCH (w:MediaWork {wikidata_id: $work_ref})
	` + upsertAppearanceBody

	// Interaction edges are undirected in meaning; callers order the
	// endpoints before binding the parameters so only one directed edge
	// ever exists per pair.
	UpsertInteractionQuery = `
		MATCH (a:HistoricalFigure {canonical_id: $figure_a})
		MATCH (b:HistoricalFigure {canonical_id: $figure_b})
		MERGE (a)-[r:INTERACTED_WITH]->(b)
		ON CREATE SET r.created_at = $now
		SET r.media_id = coalesce($media_id, r.media_id)
		RETURN a.canonical_id AS figure_a, b.canonical_id AS figure_b
	`

	// QA probes. Read-only.
	SchemaReportQuery = `
		MATCH (w:MediaWork)
		RETURN count(w) AS total,
			sum(CASE WHEN w.year IS NOT NULL THEN 1 ELSE 0 END) AS legacy_year,
			sum(CASE WHEN w.type IS NOT NULL THEN 1 ELSE 0 END) AS legacy_type,
			sum(CASE WHEN w.release_year IS NOT NULL THEN 1 ELSE 0 END) AS release_year,
			sum(CASE WHEN w.media_type IS NOT NULL THEN 1 ELSE 0 END) AS media_type,
			sum(CASE WHEN w.media_id IS NULL THEN 1 ELSE 0 END) AS missing_media_id,
			sum(CASE WHEN w.wikidata_id IS NULL THEN 1 ELSE 0 END) AS missing_wikidata_id
	`

	ExistenceProbeQuery = `
		UNWIND $ids AS id
		OPTIONAL MATCH (f:HistoricalFigure {canonical_id: id})
		OPTIONAL MATCH (w:MediaWork)
		WHERE w.media_id = id OR w.wikidata_id = id
		RETURN id AS id,
			f IS NOT NULL AS figure,
			count(w) > 0 AS work
	`

	OrphanFiguresQuery = `
		MATCH (f:HistoricalFigure)
		WHERE NOT (f)-[:APPEARS_IN]->()
		RETURN f.canonical_id AS canonical_id, f.name AS name
		ORDER BY f.canonical_id
	`

	OrphanWorksQuery = `
		MATCH (w:MediaWork)
		WHERE NOT ()-[:APPEARS_IN]->(w)
		RETURN w.media_id AS media_id, w.wikidata_id AS wikidata_id, w.title AS title
		ORDER BY w.media_id
	`
)
