package redis

const (
	// saveDayScript atomically stores a day record and maintains the date index
	saveDayScript = `
local day_key = KEYS[1]      -- idlewatch:day:{date}
local index_key = KEYS[2]    -- idlewatch:days

local date = ARGV[1]
local payload = ARGV[2]

redis.call('SET', day_key, payload)
redis.call('SADD', index_key, date)

return 'OK'
`
)
