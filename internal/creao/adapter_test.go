package creao

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersCSV = `ID,Email,Role,Name,Creator,Updater,Created,Updated
u1,ana@farm.test,Farmer,Ana's Orchard,admin,admin,2024-01-01,2024-01-02
u2,bo@farm.test,Seller,Bo Greens,admin,admin,2024-01-01,2024-01-02
u3,cy@shop.test,Buyer,Cy Market,admin,admin,2024-01-01,2024-01-02
,missing@id.test,Buyer,Nobody,admin,admin,2024-01-01,2024-01-02
`

// 2024-06-03 is a Monday; 1717372800 is 2024-06-03T00:00:00Z
const transactionsCSV = `order_id,farmer_id,buyer_id,crop,quantity_kg,price_per_kg,total_revenue,order_date,status,delivery_time
o1,u1,u3,Tomato,100,3,300,1717372800,completed,20
o2,u1,u3,tomato,50,3,150,1717632000,pending,40
o3,u1,u3,mango,30,4,120,1717977600,completed,
o4,u9,u3,carrot,10,2,20,1717372800,completed,15
o5,u1,u3,tomato,abc,3,0,1717372800,completed,10
`

func TestLoadUsers(t *testing.T) {
	a := NewAdapter()

	stats, err := a.LoadUsers(strings.NewReader(usersCSV))

	require.NoError(t, err)
	assert.Equal(t, UserStats{TotalUsers: 3, Farmers: 2, Buyers: 1}, stats)
	users := a.Users()
	require.Len(t, users, 3)
	assert.Equal(t, "ana@farm.test", users[0].Email)
	assert.True(t, users[1].IsFarmer())
	assert.False(t, users[2].IsFarmer())
}

func TestLoadUsers_MissingColumn(t *testing.T) {
	_, err := NewAdapter().LoadUsers(strings.NewReader("ID,Email\nu1,a@b.c\n"))

	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestLoadTransactions(t *testing.T) {
	a := NewAdapter()
	_, err := a.LoadUsers(strings.NewReader(usersCSV))
	require.NoError(t, err)

	stats, err := a.LoadTransactions(strings.NewReader(transactionsCSV))

	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.FarmersWithTransactions)

	farmers := a.Farmers()
	require.Len(t, farmers, 2)

	ana := farmers[0]
	assert.Equal(t, "u1", ana.FarmerID)
	assert.Equal(t, "Ana's Orchard", ana.FarmerName)
	assert.Equal(t, 3, ana.Metadata["total_orders"])
	assert.Equal(t, 570.0, ana.Metadata["total_revenue"])

	require.Len(t, ana.Records, 2)
	tomato := ana.Records[0]
	assert.Equal(t, "2024-06-03", tomato.WeekStart)
	assert.Equal(t, "tomato", tomato.Crop)
	assert.Equal(t, 150.0, tomato.TotalSuppliedKg)
	assert.Equal(t, 100.0, tomato.TotalSoldKg)
	assert.Equal(t, 30.0, tomato.AvgDeliveryDelayMin)

	mango := ana.Records[1]
	assert.Equal(t, "2024-06-10", mango.WeekStart)
	assert.Equal(t, 30.0, mango.TotalSoldKg)
	assert.Equal(t, 0.0, mango.AvgDeliveryDelayMin)

	assert.Equal(t, "Farmer u9", farmers[1].FarmerName)
}

func TestLoadTransactions_ProductColumn(t *testing.T) {
	a := NewAdapter()
	data := "farmer_id,product,quantity_kg,order_date,status\nu1,Lettuce,12,1717372800,completed\n"

	_, err := a.LoadTransactions(strings.NewReader(data))

	require.NoError(t, err)
	farmers := a.Farmers()
	require.Len(t, farmers, 1)
	assert.Equal(t, "lettuce", farmers[0].Records[0].Crop)
}

func TestLoadTransactions_MissingCrop(t *testing.T) {
	_, err := NewAdapter().LoadTransactions(strings.NewReader("farmer_id,quantity_kg,order_date\nu1,1,1717372800\n"))

	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "2024-06-03"},
		{time.Date(2024, 6, 9, 23, 59, 0, 0, time.UTC), "2024-06-03"},
		{time.Date(2024, 6, 6, 12, 0, 0, 0, time.UTC), "2024-06-03"},
		{time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), "2024-02-26"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekStart(tt.in), tt.in.String())
	}
}
