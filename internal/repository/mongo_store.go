package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/cashflow-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	clientsCollection  = "clients"
	countersCollection = "counters"
)

// summary projection used whenever the embedded arrays are not needed
var withoutHistory = bson.M{"paymentHistory": 0, "notes": 0, "documents": 0}

// NewMongoLoanStore creates the MongoDB-backed loan store and makes sure its indexes exist
func NewMongoLoanStore(ctx context.Context, db *mongo.Database) (*LoanStore, error) {
	m := &mongoLoans{
		clients:  db.Collection(clientsCollection),
		counters: db.Collection(countersCollection),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return &LoanStore{
		Name:     "mongo",
		Client:   &mongoClientRepository{m},
		Payment:  &mongoPaymentRepository{m},
		Note:     &mongoNoteRepository{m},
		Document: &mongoDocumentRepository{m},
		Ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, readpref.Primary())
		},
	}, nil
}

type mongoLoans struct {
	clients  *mongo.Collection
	counters *mongo.Collection
}

func (m *mongoLoans) ensureIndexes(ctx context.Context) error {
	_, err := m.clients.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "archived", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
		{Keys: bson.D{{Key: "paymentHistory.id", Value: 1}}},
		{Keys: bson.D{{Key: "paymentHistory.date", Value: -1}}},
		{Keys: bson.D{{Key: "notes.id", Value: 1}}},
		{Keys: bson.D{{Key: "documents.id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create mongo indexes: %w", err)
	}
	return nil
}

// nextID hands out sequential numeric ids so records keep the same shape as in SQL
func (m *mongoLoans) nextID(ctx context.Context, sequence string) (uint, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", sequence, err)
	}
	return uint(counter.Seq), nil
}

func (m *mongoLoans) findClient(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*clientDoc, error) {
	var doc clientDoc
	if err := m.clients.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (m *mongoLoans) decodeClients(ctx context.Context, cursor *mongo.Cursor) ([]models.Client, error) {
	defer cursor.Close(ctx)

	var docs []clientDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	clients := make([]models.Client, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, nil
}

// clients

type mongoClientRepository struct {
	*mongoLoans
}

var mongoSortFields = map[string]string{
	"name":             "name",
	"created_at":       "createdAt",
	"application_date": "applicationDate",
	"loan_amount":      "loanAmount",
	"amount_paid":      "amountPaid",
	"amount_due":       "amountDue",
	"due_date":         "dueDate",
	"status":           "status",
}

func (r *mongoClientRepository) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	doc, err := r.findClient(ctx, bson.M{"_id": int64(id)}, options.FindOne().SetProjection(withoutHistory))
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

func (r *mongoClientRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Client, error) {
	doc, err := r.findClient(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return nil, err
	}
	c, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(c.Payments, func(i, j int) bool { return c.Payments[i].PaymentDate.After(c.Payments[j].PaymentDate) })
	sort.SliceStable(c.Notes, func(i, j int) bool { return c.Notes[i].CreatedAt.After(c.Notes[j].CreatedAt) })
	sort.SliceStable(c.Documents, func(i, j int) bool { return c.Documents[i].CreatedAt.After(c.Documents[j].CreatedAt) })
	return c, nil
}

func (r *mongoClientRepository) Create(ctx context.Context, client *models.Client) error {
	id, err := r.nextID(ctx, clientsCollection)
	if err != nil {
		return err
	}

	now := time.Now()
	client.ID = id
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.Status == "" {
		client.Status = models.ClientStatusNewLead
	}
	if client.ApplicationDate.IsZero() {
		client.ApplicationDate = now
	}
	if client.LastStatusUpdate.IsZero() {
		client.LastStatusUpdate = now
	}

	doc, err := newClientDoc(client)
	if err != nil {
		return err
	}
	_, err = r.clients.InsertOne(ctx, doc)
	return err
}

func (r *mongoClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now()
	update, err := profileUpdate(client)
	if err != nil {
		return err
	}

	result, err := r.clients.UpdateOne(ctx, bson.M{"_id": int64(client.ID)}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoClientRepository) UpdateStatus(ctx context.Context, client *models.Client) error {
	var enc decimalEncoder
	paid := enc.encode(client.AmountPaid)
	due := enc.encode(client.AmountDue)
	if enc.err != nil {
		return enc.err
	}

	result, err := r.clients.UpdateOne(ctx,
		bson.M{"_id": int64(client.ID), "amountPaid": paid},
		bson.M{"$set": bson.M{
			"status":           client.Status,
			"amountDue":        due,
			"lastStatusUpdate": client.LastStatusUpdate,
			"updatedAt":        time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.findClient(ctx, bson.M{"_id": int64(client.ID)}, options.FindOne().SetProjection(bson.M{"_id": 1})); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *mongoClientRepository) Delete(ctx context.Context, id uint) error {
	result, err := r.clients.DeleteOne(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoClientRepository) List(ctx context.Context, query *ListQuery) ([]models.Client, int64, error) {
	filter := bson.M{}

	if query.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(query.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
			bson.M{"phone": pattern},
			bson.M{"idNumber": pattern},
		}
	}
	if status := query.Filters["status"]; status != "" {
		filter["status"] = bson.M{"$in": strings.Split(status, ",")}
	}
	if loanType := query.Filters["loan_type"]; loanType != "" {
		filter["loanType"] = loanType
	}
	switch query.Filters["archived"] {
	case "all":
	case "true":
		filter["archived"] = true
	default:
		filter["archived"] = false
	}

	total, err := r.clients.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortField, ok := mongoSortFields[query.SortBy]
	if !ok {
		sortField = "createdAt"
	}
	dir := 1
	if query.SortDir == "desc" || query.SortBy == "" {
		dir = -1
	}

	opts := options.Find().
		SetProjection(withoutHistory).
		SetSort(bson.D{{Key: sortField, Value: dir}, {Key: "_id", Value: dir}})
	if query.PerPage > 0 {
		opts.SetSkip(int64(query.Offset())).SetLimit(int64(query.PerPage))
	}

	cursor, err := r.clients.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	clients, err := r.decodeClients(ctx, cursor)
	return clients, total, err
}

func (r *mongoClientRepository) FindOpen(ctx context.Context) ([]models.Client, error) {
	cursor, err := r.clients.Find(ctx,
		bson.M{"archived": false, "status": bson.M{"$ne": models.ClientStatusPaid}},
		options.Find().SetProjection(withoutHistory).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	return r.decodeClients(ctx, cursor)
}

func (r *mongoClientRepository) FindAll(ctx context.Context, includeArchived bool) ([]models.Client, error) {
	filter := bson.M{}
	if !includeArchived {
		filter["archived"] = false
	}
	cursor, err := r.clients.Find(ctx, filter,
		options.Find().SetProjection(withoutHistory).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	return r.decodeClients(ctx, cursor)
}

func (r *mongoClientRepository) RecordPayment(ctx context.Context, client *models.Client, payment *models.Payment, previousPaid decimal.Decimal) error {
	id, err := r.nextID(ctx, "payments")
	if err != nil {
		return err
	}
	payment.ID = id
	payment.ClientID = client.ID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = payment.CreatedAt
	}
	if payment.Method == "" {
		payment.Method = models.PaymentMethodCash
	}

	doc, err := newPaymentDoc(payment)
	if err != nil {
		return err
	}

	var enc decimalEncoder
	prev := enc.encode(previousPaid)
	paid := enc.encode(client.AmountPaid)
	due := enc.encode(client.AmountDue)
	if enc.err != nil {
		return enc.err
	}

	// Single-document update: the totals and the history entry land together or not at all
	result, err := r.clients.UpdateOne(ctx,
		bson.M{"_id": int64(client.ID), "amountPaid": prev},
		bson.M{
			"$set": bson.M{
				"amountPaid":       paid,
				"amountDue":        due,
				"lastPaymentDate":  client.LastPaymentDate,
				"status":           client.Status,
				"lastStatusUpdate": client.LastStatusUpdate,
				"updatedAt":        time.Now(),
			},
			"$push": bson.M{"paymentHistory": doc},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.findClient(ctx, bson.M{"_id": int64(client.ID)}, options.FindOne().SetProjection(bson.M{"_id": 1})); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// payments

type mongoPaymentRepository struct {
	*mongoLoans
}

func (r *mongoPaymentRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Payment, error) {
	doc, err := r.findClient(ctx, bson.M{"_id": int64(clientID)}, options.FindOne().SetProjection(bson.M{"paymentHistory": 1}))
	if err != nil {
		return nil, err
	}

	payments := make([]models.Payment, 0, len(doc.PaymentHistory))
	for i := range doc.PaymentHistory {
		p, err := doc.PaymentHistory[i].toModel(clientID)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].PaymentDate.After(payments[j].PaymentDate) })
	return payments, nil
}

// unwoundPayment is one element of paymentHistory lifted out by $unwind
type unwoundPayment struct {
	ClientID   int64      `bson:"_id"`
	ClientName string     `bson:"name"`
	Payment    paymentDoc `bson:"paymentHistory"`
}

func (r *mongoPaymentRepository) aggregate(ctx context.Context, stages ...bson.D) ([]models.Payment, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{"name": 1, "paymentHistory": 1}}},
		{{Key: "$unwind", Value: "$paymentHistory"}},
	}
	pipeline = append(pipeline, stages...)

	cursor, err := r.clients.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []unwoundPayment
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	payments := make([]models.Payment, 0, len(rows))
	for i := range rows {
		p, err := rows[i].Payment.toModel(uint(rows[i].ClientID))
		if err != nil {
			return nil, err
		}
		p.ClientName = rows[i].ClientName
		payments = append(payments, *p)
	}
	return payments, nil
}

func (r *mongoPaymentRepository) Recent(ctx context.Context, limit int) ([]models.Payment, error) {
	return r.aggregate(ctx,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "paymentHistory.date", Value: -1}, {Key: "paymentHistory.id", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	)
}

func (r *mongoPaymentRepository) ListSince(ctx context.Context, since time.Time) ([]models.Payment, error) {
	return r.aggregate(ctx,
		bson.D{{Key: "$match", Value: bson.M{"paymentHistory.date": bson.M{"$gte": since}}}},
		bson.D{{Key: "$sort", Value: bson.M{"paymentHistory.date": 1}}},
	)
}

// notes

type mongoNoteRepository struct {
	*mongoLoans
}

func (r *mongoNoteRepository) FindByID(ctx context.Context, id uint) (*models.Note, error) {
	doc, err := r.findClient(ctx,
		bson.M{"notes.id": int64(id)},
		options.FindOne().SetProjection(bson.M{"notes.$": 1}),
	)
	if err != nil {
		return nil, err
	}
	if len(doc.Notes) == 0 {
		return nil, ErrNotFound
	}
	return doc.Notes[0].toModel(uint(doc.ID)), nil
}

func (r *mongoNoteRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Note, error) {
	doc, err := r.findClient(ctx, bson.M{"_id": int64(clientID)}, options.FindOne().SetProjection(bson.M{"notes": 1}))
	if err != nil {
		return nil, err
	}
	notes := make([]models.Note, 0, len(doc.Notes))
	for i := range doc.Notes {
		notes = append(notes, *doc.Notes[i].toModel(clientID))
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (r *mongoNoteRepository) Create(ctx context.Context, note *models.Note) error {
	id, err := r.nextID(ctx, "notes")
	if err != nil {
		return err
	}
	note.ID = id
	if note.NoteType == "" {
		note.NoteType = models.NoteTypeGeneral
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	result, err := r.clients.UpdateOne(ctx,
		bson.M{"_id": int64(note.ClientID)},
		bson.M{"$push": bson.M{"notes": newNoteDoc(note)}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoNoteRepository) Delete(ctx context.Context, id uint) error {
	result, err := r.clients.UpdateOne(ctx,
		bson.M{"notes.id": int64(id)},
		bson.M{"$pull": bson.M{"notes": bson.M{"id": int64(id)}}},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// documents

type mongoDocumentRepository struct {
	*mongoLoans
}

func (r *mongoDocumentRepository) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	doc, err := r.findClient(ctx,
		bson.M{"documents.id": int64(id)},
		options.FindOne().SetProjection(bson.M{"documents.$": 1}),
	)
	if err != nil {
		return nil, err
	}
	if len(doc.Documents) == 0 {
		return nil, ErrNotFound
	}
	return doc.Documents[0].toModel(uint(doc.ID)), nil
}

func (r *mongoDocumentRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Document, error) {
	doc, err := r.findClient(ctx, bson.M{"_id": int64(clientID)}, options.FindOne().SetProjection(bson.M{"documents": 1}))
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(doc.Documents))
	for i := range doc.Documents {
		docs = append(docs, *doc.Documents[i].toModel(clientID))
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (r *mongoDocumentRepository) Create(ctx context.Context, d *models.Document) error {
	id, err := r.nextID(ctx, "documents")
	if err != nil {
		return err
	}
	d.ID = id
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Category == "" {
		d.Category = models.DocumentCategoryOther
	}

	result, err := r.clients.UpdateOne(ctx,
		bson.M{"_id": int64(d.ClientID)},
		bson.M{"$push": bson.M{"documents": newDocumentDoc(d)}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoDocumentRepository) Delete(ctx context.Context, id uint) error {
	result, err := r.clients.UpdateOne(ctx,
		bson.M{"documents.id": int64(id)},
		bson.M{"$pull": bson.M{"documents": bson.M{"id": int64(id)}}},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// toBSONMap round-trips a document struct through bson so its tags decide the field names
func toBSONMap(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
