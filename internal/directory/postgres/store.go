// Package postgres implements the membership directory over PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vereinswerk/portal/internal/directory"
	platformerrors "github.com/vereinswerk/portal/internal/platform/errors"
)

// Store queries the membership database through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ directory.Directory = (*Store)(nil)

// Connect opens a connection pool against the membership database and
// verifies reachability once.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse directory dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("open directory pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping directory", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the directory is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return unavailable("ping directory", errors.New("pool is not configured"))
	}
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping directory", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return platformerrors.Wrap(platformerrors.CodeDirectoryUnavailable, op+": directory unreachable", err)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM mitglied
		WHERE lower(email) = lower($1) AND NOT geloescht
	`, email).Scan(&count)
	if err != nil {
		return false, unavailable("count members by email", err)
	}
	return count > 0, nil
}

func (s *Store) MemberMeta(ctx context.Context, email string) (directory.MemberMeta, error) {
	var meta directory.MemberMeta
	var abteilung sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT mitglied_id, gruppen_nr
		FROM mitglied
		WHERE lower(email) = lower($1) AND NOT geloescht
		ORDER BY mitglied_id
		LIMIT 1
	`, email).Scan(&meta.MemberID, &abteilung)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.MemberMeta{}, directory.ErrNotFound
		}
		return directory.MemberMeta{}, unavailable("load member meta", err)
	}
	meta.AbteilungID = strings.TrimSpace(abteilung.String)
	return meta, nil
}

func (s *Store) MemberIDs(ctx context.Context, email string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mitglied_id
		FROM mitglied
		WHERE lower(email) = lower($1) AND NOT geloescht
		ORDER BY mitglied_id
	`, email)
	if err != nil {
		return nil, unavailable("list member ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan member id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate member ids", err)
	}
	return ids, nil
}

func (s *Store) MembersByEmail(ctx context.Context, email string) ([]directory.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			m.mitglied_id,
			m.anrede, m.titel, m.vorname, m.nachname,
			m.geburtsdatum,
			m.strasse, m.plz, m.ort, m.land,
			m.telefon_privat, m.telefon_dienstlich, m.handy_1, m.handy_2,
			m.email,
			m.eintritt_datum, m.austritt_datum,
			m.gruppen_nr,
			COALESCE(a.abteilung_bezeichnung, ''),
			m.einmalbetrag_1,
			m.bic_nr, m.iban_nr,
			m.sepa_mandats_ref, m.sepa_datum_mandats_ref,
			m.extern,
			m.dsgvo_zugestimmt, m.dsgvo_zugestimmt_am
		FROM mitglied m
		LEFT JOIN abteilung a
			ON a.abteilung_id = m.gruppen_nr AND NOT a.geloescht
		WHERE lower(m.email) = lower($1) AND NOT m.geloescht
		ORDER BY m.nachname, m.vorname
	`, email)
	if err != nil {
		return nil, unavailable("list members by email", err)
	}
	defer rows.Close()

	var members []directory.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, unavailable("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate members", err)
	}
	return members, nil
}

type memberScanner interface {
	Scan(dest ...any) error
}

func scanMember(row memberScanner) (directory.Member, error) {
	var m directory.Member
	var (
		anrede, titel, vorname, nachname             sql.NullString
		strasse, plz, ort, land                      sql.NullString
		telPriv, telDienst, handy1, handy2, mailAddr sql.NullString
		gruppenNr, beitrag                           sql.NullString
		bic, iban, mandatsRef                        sql.NullString
		geburtsdatum, eintritt, austritt             sql.NullTime
		mandatsDatum, dsgvoDatum                     sql.NullTime
		extern, dsgvo                                sql.NullBool
	)
	err := row.Scan(
		&m.ID,
		&anrede, &titel, &vorname, &nachname,
		&geburtsdatum,
		&strasse, &plz, &ort, &land,
		&telPriv, &telDienst, &handy1, &handy2,
		&mailAddr,
		&eintritt, &austritt,
		&gruppenNr,
		&m.Abteilung,
		&beitrag,
		&bic, &iban,
		&mandatsRef, &mandatsDatum,
		&extern,
		&dsgvo, &dsgvoDatum,
	)
	if err != nil {
		return directory.Member{}, err
	}
	m.Anrede = anrede.String
	m.Titel = titel.String
	m.Vorname = vorname.String
	m.Nachname = nachname.String
	m.Geburtsdatum = timePtr(geburtsdatum)
	m.Strasse = strasse.String
	m.PLZ = plz.String
	m.Ort = ort.String
	m.Land = land.String
	m.TelefonPrivat = telPriv.String
	m.TelefonDienstlich = telDienst.String
	m.Handy1 = handy1.String
	m.Handy2 = handy2.String
	m.Email = mailAddr.String
	m.Eintritt = timePtr(eintritt)
	m.Austritt = timePtr(austritt)
	m.AbteilungID = strings.TrimSpace(gruppenNr.String)
	m.Beitrag = beitrag.String
	m.BIC = bic.String
	m.IBAN = iban.String
	m.MandatsRef = mandatsRef.String
	m.MandatsDatum = timePtr(mandatsDatum)
	m.Extern = extern.Bool
	m.DSGVO = dsgvo.Bool
	m.DSGVODatum = timePtr(dsgvoDatum)
	return m, nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func (s *Store) AdminSignals(ctx context.Context, email string) (directory.AdminSignals, error) {
	var signals directory.AdminSignals
	var gruppenNr, flag sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT mitglied_id, gruppen_nr, sonstiges_1
		FROM mitglied
		WHERE lower(email) = lower($1) AND NOT geloescht
		ORDER BY mitglied_id
		LIMIT 1
	`, email).Scan(&signals.MemberID, &gruppenNr, &flag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.AdminSignals{}, directory.ErrNotFound
		}
		return directory.AdminSignals{}, unavailable("load admin signals", err)
	}
	signals.AbteilungID = strings.TrimSpace(gruppenNr.String)
	signals.FlagText = flag.String
	return signals, nil
}

func (s *Store) MemberBelongsTo(ctx context.Context, email, memberID string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM mitglied
		WHERE lower(email) = lower($1) AND mitglied_id = $2 AND NOT geloescht
	`, email, memberID).Scan(&count)
	if err != nil {
		return false, unavailable("check member ownership", err)
	}
	return count > 0, nil
}

func (s *Store) EmailsForMemberIDs(ctx context.Context, memberIDs []string) ([]string, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT email
		FROM mitglied
		WHERE NOT geloescht AND email IS NOT NULL AND email <> '' AND mitglied_id = ANY($1)
	`, memberIDs)
	if err != nil {
		return nil, unavailable("resolve member emails", err)
	}
	defer rows.Close()
	return collectEmails(rows)
}

func (s *Store) AllEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT email
		FROM mitglied
		WHERE NOT geloescht AND email IS NOT NULL AND email <> ''
	`)
	if err != nil {
		return nil, unavailable("list all emails", err)
	}
	defer rows.Close()
	return collectEmails(rows)
}

func collectEmails(rows pgx.Rows) ([]string, error) {
	var emails []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, unavailable("scan email", err)
		}
		addr = strings.TrimSpace(addr)
		if addr != "" {
			emails = append(emails, addr)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate emails", err)
	}
	return emails, nil
}

func (s *Store) BankData(ctx context.Context, email string) (directory.BankData, error) {
	var data directory.BankData
	var bic, iban, mandatsRef sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT bic_nr, iban_nr, sepa_mandats_ref
		FROM mitglied
		WHERE lower(email) = lower($1) AND NOT geloescht
		ORDER BY mitglied_id
		LIMIT 1
	`, email).Scan(&bic, &iban, &mandatsRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.BankData{}, directory.ErrNotFound
		}
		return directory.BankData{}, unavailable("load bank data", err)
	}
	data.BIC = bic.String
	data.IBAN = iban.String
	data.MandatsRef = mandatsRef.String
	return data, nil
}

func (s *Store) UpdateProfile(ctx context.Context, email, memberID string, update directory.ProfileUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mitglied
		SET
			vorname = $3,
			nachname = $4,
			strasse = $5,
			plz = $6,
			ort = $7,
			email = $8,
			handy_1 = $9,
			telefon_privat = $10,
			telefon_dienstlich = $11,
			iban_nr = $12,
			bic_nr = $13
		WHERE mitglied_id = $1 AND lower(email) = lower($2) AND NOT geloescht
	`,
		memberID, email,
		update.Vorname, update.Nachname,
		update.Strasse, update.PLZ, update.Ort,
		update.Email,
		update.Handy1, update.TelefonPrivat, update.TelefonDienstlich,
		update.IBAN, update.BIC,
	)
	if err != nil {
		return unavailable("update member profile", err)
	}
	if tag.RowsAffected() == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateConsent(ctx context.Context, email string, memberIDs []string) (int, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE mitglied
		SET
			dsgvo_zugestimmt = TRUE,
			dsgvo_zugestimmt_am = now()
		WHERE lower(email) = lower($1) AND mitglied_id = ANY($2) AND NOT geloescht
	`, email, memberIDs)
	if err != nil {
		return 0, unavailable("update consent", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Search(ctx context.Context, query string) ([]directory.MemberSummary, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT mitglied_id, COALESCE(vorname, ''), COALESCE(nachname, ''), COALESCE(email, '')
		FROM mitglied
		WHERE NOT geloescht
			AND (
				mitglied_id ILIKE $1 OR
				vorname ILIKE $1 OR
				nachname ILIKE $1 OR
				email ILIKE $1
			)
		ORDER BY nachname, vorname
		LIMIT 50
	`, pattern)
	if err != nil {
		return nil, unavailable("search members", err)
	}
	defer rows.Close()

	var results []directory.MemberSummary
	for rows.Next() {
		var summary directory.MemberSummary
		if err := rows.Scan(&summary.ID, &summary.Vorname, &summary.Nachname, &summary.Email); err != nil {
			return nil, unavailable("scan search result", err)
		}
		results = append(results, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate search results", err)
	}
	return results, nil
}
