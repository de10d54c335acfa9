package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ETL loads the orchestrator's cache tables into the graph. The cache
// database is opened read-only by contract: the orchestrator owns those
// tables and this process only ever selects from them.
type ETL struct {
	q      Querier
	db     *sql.DB
	logger *slog.Logger
}

// SyncCounts reports how many elements each sync pass touched.
type SyncCounts struct {
	Guardians            int `json:"guardians"`
	Students             int `json:"students"`
	Grades               int `json:"grades"`
	Installments         int `json:"installments"`
	Payments             int `json:"payments"`
	Interactions         int `json:"interactions"`
	Tickets              int `json:"tickets"`
	IgnoredNotifications int `json:"ignored_notifications"`
}

// NewETL creates an ETL reading from the given orchestrator database.
func NewETL(q Querier, db *sql.DB) *ETL {
	return &ETL{
		q:      q,
		db:     db,
		logger: slog.Default().With("component", "graph-etl"),
	}
}

// SyncAll runs every sync pass in dependency order and returns the
// aggregate counts.
func (e *ETL) SyncAll(ctx context.Context) (SyncCounts, error) {
	var counts SyncCounts

	owners, err := e.syncGuardians(ctx, &counts)
	if err != nil {
		return counts, err
	}
	if err := e.syncStudents(ctx, &counts); err != nil {
		return counts, err
	}
	if err := e.linkGuardians(ctx, owners); err != nil {
		return counts, err
	}
	studentOwner := invertOwners(owners)
	if err := e.syncInstallments(ctx, studentOwner, &counts); err != nil {
		return counts, err
	}
	if err := e.syncInteractions(ctx, &counts); err != nil {
		return counts, err
	}
	if err := e.syncTickets(ctx, &counts); err != nil {
		return counts, err
	}
	if err := e.syncIgnoredNotifications(ctx, &counts); err != nil {
		return counts, err
	}

	e.logger.Info("Graph sync finished",
		"guardians", counts.Guardians,
		"students", counts.Students,
		"installments", counts.Installments,
		"payments", counts.Payments,
		"interactions", counts.Interactions,
		"tickets", counts.Tickets)
	return counts, nil
}

// syncGuardians merges Guardian nodes and returns the guardian → students
// mapping for edge passes.
func (e *ETL) syncGuardians(ctx context.Context, counts *SyncCounts) (map[string][]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT guardian_id, name, phone, COALESCE(email, ''), relation,
		       COALESCE(student_ids, '[]'::jsonb)::text
		FROM guardian_mirrors`)
	if err != nil {
		return nil, fmt.Errorf("failed to read guardian mirrors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	owners := make(map[string][]string)
	for rows.Next() {
		var id, name, phone, email, relation, studentsJSON string
		if err := rows.Scan(&id, &name, &phone, &email, &relation, &studentsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan guardian mirror: %w", err)
		}

		var students []string
		if err := json.Unmarshal([]byte(studentsJSON), &students); err != nil {
			e.logger.Warn("Skipping malformed student list", "guardian_id", id, "error", err)
		}
		owners[id] = students

		err := e.q.Write(ctx, `
			MERGE (g:Guardian {erp_id: $id})
			SET g.name = $name,
			    g.phone = $phone,
			    g.email = $email,
			    g.relation = $relation,
			    g.last_sync = datetime()`,
			map[string]interface{}{
				"id": id, "name": name, "phone": phone,
				"email": email, "relation": relation,
			})
		if err != nil {
			return nil, err
		}
		counts.Guardians++
	}
	return owners, rows.Err()
}

func (e *ETL) syncStudents(ctx context.Context, counts *SyncCounts) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT student_id, name, grade, active FROM student_mirrors`)
	if err != nil {
		return fmt.Errorf("failed to read student mirrors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grades := make(map[string]bool)
	for rows.Next() {
		var id, name, grade string
		var active bool
		if err := rows.Scan(&id, &name, &grade, &active); err != nil {
			return fmt.Errorf("failed to scan student mirror: %w", err)
		}

		err := e.q.Write(ctx, `
			MERGE (s:Student {erp_id: $id})
			SET s.name = $name,
			    s.grade = $grade,
			    s.active = $active,
			    s.last_sync = datetime()
			MERGE (gr:Grade {label: $grade})
			MERGE (s)-[:ENROLLED_IN]->(gr)`,
			map[string]interface{}{
				"id": id, "name": name, "grade": grade, "active": active,
			})
		if err != nil {
			return err
		}
		counts.Students++
		if !grades[grade] {
			grades[grade] = true
			counts.Grades++
		}
	}
	return rows.Err()
}

func (e *ETL) linkGuardians(ctx context.Context, owners map[string][]string) error {
	for guardianID, students := range owners {
		for _, studentID := range students {
			err := e.q.Write(ctx, `
				MATCH (g:Guardian {erp_id: $guardian})
				MATCH (s:Student {erp_id: $student})
				MERGE (g)-[:RESPONSIBLE_OF]->(s)`,
				map[string]interface{}{"guardian": guardianID, "student": studentID})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *ETL) syncInstallments(ctx context.Context, studentOwner map[string]string, counts *SyncCounts) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT installment_id, student_id, sequence, amount, due_date, state, paid_at
		FROM installment_mirrors`)
	if err != nil {
		return fmt.Errorf("failed to read installment mirrors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, studentID, state string
		var sequence int
		var amount float64
		var dueDate time.Time
		var paidAt sql.NullTime
		if err := rows.Scan(&id, &studentID, &sequence, &amount, &dueDate, &state, &paidAt); err != nil {
			return fmt.Errorf("failed to scan installment mirror: %w", err)
		}

		err := e.q.Write(ctx, `
			MERGE (i:Installment {erp_id: $id})
			SET i.sequence = $sequence,
			    i.amount = $amount,
			    i.due_date = date($due_date),
			    i.state = $state,
			    i.last_sync = datetime()
			WITH i
			MATCH (s:Student {erp_id: $student})
			MERGE (s)-[:OWES]->(i)`,
			map[string]interface{}{
				"id": id, "student": studentID, "sequence": sequence,
				"amount": amount, "due_date": dueDate.UTC().Format("2006-01-02"),
				"state": state,
			})
		if err != nil {
			return err
		}
		counts.Installments++

		guardianID, ok := studentOwner[studentID]
		if state != "paid" || !paidAt.Valid || !ok {
			continue
		}
		err = e.q.Write(ctx, `
			MATCH (g:Guardian {erp_id: $guardian})
			MATCH (i:Installment {erp_id: $id})
			MERGE (g)-[p:PAID]->(i)
			SET p.date = date($paid_at),
			    p.amount = $amount,
			    p.lateness_days = $lateness`,
			map[string]interface{}{
				"guardian": guardianID, "id": id, "amount": amount,
				"paid_at":  paidAt.Time.UTC().Format("2006-01-02"),
				"lateness": latenessDays(paidAt.Time, dueDate),
			})
		if err != nil {
			return err
		}
		counts.Payments++
	}
	return rows.Err()
}

func (e *ETL) syncInteractions(ctx context.Context, counts *SyncCounts) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT interaction_id, phone, installment_id, kind, created_at
		FROM interactions
		WHERE installment_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("failed to read interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, phone, installmentID, kind string
		var createdAt time.Time
		if err := rows.Scan(&id, &phone, &installmentID, &kind, &createdAt); err != nil {
			return fmt.Errorf("failed to scan interaction: %w", err)
		}

		err := e.q.Write(ctx, `
			MATCH (g:Guardian {phone: $phone})
			MATCH (i:Installment {erp_id: $installment})
			MERGE (g)-[r:INTERACTED {interaction_id: $id}]->(i)
			SET r.kind = $kind, r.at = datetime($at)`,
			map[string]interface{}{
				"id": id, "phone": phone, "installment": installmentID,
				"kind": kind, "at": createdAt.UTC().Format(time.RFC3339),
			})
		if err != nil {
			return err
		}
		counts.Interactions++
	}
	return rows.Err()
}

func (e *ETL) syncTickets(ctx context.Context, counts *SyncCounts) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT ticket_id, student_id, COALESCE(guardian_id, ''), category, state, priority, created_at
		FROM tickets`)
	if err != nil {
		return fmt.Errorf("failed to read tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, studentID, guardianID, category, state, priority string
		var createdAt time.Time
		if err := rows.Scan(&id, &studentID, &guardianID, &category, &state, &priority, &createdAt); err != nil {
			return fmt.Errorf("failed to scan ticket: %w", err)
		}

		err := e.q.Write(ctx, `
			MERGE (t:Ticket {id: $id})
			SET t.student_id = $student,
			    t.category = $category,
			    t.state = $state,
			    t.priority = $priority,
			    t.created_at = datetime($at)`,
			map[string]interface{}{
				"id": id, "student": studentID, "category": category,
				"state": state, "priority": priority,
				"at": createdAt.UTC().Format(time.RFC3339),
			})
		if err != nil {
			return err
		}
		counts.Tickets++

		if guardianID == "" {
			continue
		}
		err = e.q.Write(ctx, `
			MATCH (g:Guardian {erp_id: $guardian})
			MATCH (t:Ticket {id: $id})
			MERGE (g)-[:CREATED_TICKET]->(t)`,
			map[string]interface{}{"guardian": guardianID, "id": id})
		if err != nil {
			return err
		}
	}
	return rows.Err()
}

// syncIgnoredNotifications marks reminders that went unread while the
// installment stayed unpaid. These edges feed the risk score.
func (e *ETL) syncIgnoredNotifications(ctx context.Context, counts *SyncCounts) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT n.notification_id, n.phone, n.installment_id, n.kind, n.sent_at
		FROM notification_sents n
		JOIN installment_mirrors i ON i.installment_id = n.installment_id
		WHERE n.read = false
		  AND n.kind LIKE 'reminder%'
		  AND i.state <> 'paid'`)
	if err != nil {
		return fmt.Errorf("failed to read ignored notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, phone, installmentID, kind string
		var sentAt time.Time
		if err := rows.Scan(&id, &phone, &installmentID, &kind, &sentAt); err != nil {
			return fmt.Errorf("failed to scan ignored notification: %w", err)
		}

		err := e.q.Write(ctx, `
			MATCH (g:Guardian {phone: $phone})
			MATCH (i:Installment {erp_id: $installment})
			MERGE (g)-[r:IGNORED_NOTIFICATION {notification_id: $id}]->(i)
			SET r.kind = $kind, r.sent_at = datetime($at)`,
			map[string]interface{}{
				"id": id, "phone": phone, "installment": installmentID,
				"kind": kind, "at": sentAt.UTC().Format(time.RFC3339),
			})
		if err != nil {
			return err
		}
		counts.IgnoredNotifications++
	}
	return rows.Err()
}

// latenessDays is the number of whole days a payment landed after its due
// date. Early payments count as zero.
func latenessDays(paidAt, dueDate time.Time) int {
	days := int(paidAt.Sub(dueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func invertOwners(owners map[string][]string) map[string]string {
	out := make(map[string]string)
	for guardianID, students := range owners {
		for _, studentID := range students {
			out[studentID] = guardianID
		}
	}
	return out
}
