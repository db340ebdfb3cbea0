package drug

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncodash/oncodash/internal/platform/db"
)

// Drug data lives in the shared schema and is visible to every site.

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &drugRepoPG{pool: pool}
}

func (r *drugRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const drugCols = `rxcui, name, COALESCE(generic_name, ''), brand_names, COALESCE(drug_class, ''),
	indications, contraindications, COALESCE(black_box_warning, ''), insights, created_at, updated_at`

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.RxCUI, &d.Name, &d.GenericName, &d.BrandNames, &d.DrugClass,
		&d.Indications, &d.Contraindications, &d.BlackBoxWarning, &d.Insights, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func collectDrugs(rows pgx.Rows) ([]*Drug, error) {
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *drugRepoPG) Search(ctx context.Context, query, class string, limit, offset int) ([]*Drug, int, error) {
	where := []string{"TRUE"}
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
		n := "$" + strconv.Itoa(len(args))
		where = append(where, `(lower(name) LIKE `+n+` ESCAPE '\' OR lower(COALESCE(generic_name, '')) LIKE `+n+
			` ESCAPE '\' OR EXISTS (SELECT 1 FROM unnest(brand_names) b WHERE lower(b) LIKE `+n+` ESCAPE '\'))`)
	}
	if c := strings.TrimSpace(class); c != "" {
		args = append(args, strings.ToLower(c))
		where = append(where, `lower(drug_class) = $`+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM shared.drug WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM shared.drug WHERE `+cond+
		` ORDER BY name LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectDrugs(rows)
	return items, total, err
}

func (r *drugRepoPG) Get(ctx context.Context, rxcui string) (*Drug, error) {
	return scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM shared.drug WHERE rxcui = $1`, rxcui))
}

func (r *drugRepoPG) GetMany(ctx context.Context, rxcuis []string) ([]*Drug, error) {
	if len(rxcuis) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM shared.drug d
		JOIN unnest($1::text[]) WITH ORDINALITY AS l(rxcui, pos) ON l.rxcui = d.rxcui
		ORDER BY l.pos`, rxcuis)
	if err != nil {
		return nil, err
	}
	return collectDrugs(rows)
}

func (r *drugRepoPG) Upsert(ctx context.Context, d *Drug) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO shared.drug (rxcui, name, generic_name, brand_names, drug_class, indications,
			contraindications, black_box_warning, insights)
		VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),$6,$7,NULLIF($8,''),$9)
		ON CONFLICT (rxcui) DO UPDATE SET name = EXCLUDED.name, generic_name = EXCLUDED.generic_name,
			brand_names = EXCLUDED.brand_names, drug_class = EXCLUDED.drug_class,
			indications = EXCLUDED.indications, contraindications = EXCLUDED.contraindications,
			black_box_warning = EXCLUDED.black_box_warning, insights = EXCLUDED.insights, updated_at = NOW()
		RETURNING created_at, updated_at`,
		d.RxCUI, d.Name, d.GenericName, d.BrandNames, d.DrugClass, d.Indications,
		d.Contraindications, d.BlackBoxWarning, d.Insights).Scan(&d.CreatedAt, &d.UpdatedAt)
}

type comparisonRepoPG struct{ pool *pgxpool.Pool }

func NewComparisonRepoPG(pool *pgxpool.Pool) ComparisonRepository {
	return &comparisonRepoPG{pool: pool}
}

func (r *comparisonRepoPG) Get(ctx context.Context, userID string) ([]string, error) {
	var list []string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT rxcuis FROM shared.comparison_list WHERE user_id = $1`, userID).Scan(&list)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	return list, err
}

func (r *comparisonRepoPG) Save(ctx context.Context, userID string, rxcuis []string) error {
	if rxcuis == nil {
		rxcuis = []string{}
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO shared.comparison_list (user_id, rxcuis, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET rxcuis = EXCLUDED.rxcuis, updated_at = NOW()`,
		userID, rxcuis)
	return err
}

type popularityRepoPG struct{ pool *pgxpool.Pool }

func NewPopularityRepoPG(pool *pgxpool.Pool) PopularityRepository {
	return &popularityRepoPG{pool: pool}
}

func (r *popularityRepoPG) Increment(ctx context.Context, rxcui string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO shared.drug_popularity (rxcui, count, updated_at) VALUES ($1, 1, NOW())
		ON CONFLICT (rxcui) DO UPDATE SET count = shared.drug_popularity.count + 1, updated_at = NOW()`, rxcui)
	return err
}

func (r *popularityRepoPG) Top(ctx context.Context, n int) ([]Popularity, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT p.rxcui, COALESCE(d.name, ''), p.count
		FROM shared.drug_popularity p LEFT JOIN shared.drug d ON d.rxcui = p.rxcui
		ORDER BY p.count DESC, p.rxcui LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Popularity{}
	for rows.Next() {
		var p Popularity
		if err := rows.Scan(&p.RxCUI, &p.Name, &p.Count); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
